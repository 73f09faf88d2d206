package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

// MockActions mocks the system actions a selector can trigger
type MockActions struct {
	mock.Mock
}

// IsSystemApp mocks the system app check.
func (m *MockActions) IsSystemApp(ctx context.Context, pkg string) bool {
	args := m.Called(ctx, pkg)
	return args.Bool(0)
}

// Uninstall mocks an uninstall request.
func (m *MockActions) Uninstall(ctx context.Context, pkg string, profile catalog.ProfileID) error {
	args := m.Called(ctx, pkg, profile)
	return args.Error(0)
}

// OpenAppInfo mocks opening the app details screen.
func (m *MockActions) OpenAppInfo(ctx context.Context, pkg string, profile catalog.ProfileID) error {
	args := m.Called(ctx, pkg, profile)
	return args.Error(0)
}
