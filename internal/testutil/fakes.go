// Package testutil holds in-memory collaborators shared by package tests.
package testutil

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

// Platform is a scripted catalog.Platform
type Platform struct {
	mu          sync.Mutex
	profiles    []catalog.ProfileID
	profilesErr error
	activities  map[catalog.ProfileID][]catalog.Activity
	errs        map[catalog.ProfileID]error
	panics      map[catalog.ProfileID]bool

	// Hook runs before activities are returned; tests use it to stall builds.
	Hook func(profile catalog.ProfileID)
}

// NewPlatform creates a platform that knows the given profiles
func NewPlatform(profiles ...catalog.ProfileID) *Platform {
	return &Platform{
		profiles:   profiles,
		activities: make(map[catalog.ProfileID][]catalog.Activity),
		errs:       make(map[catalog.ProfileID]error),
		panics:     make(map[catalog.ProfileID]bool),
	}
}

// Install registers a launchable activity for profile
func (p *Platform) Install(profile catalog.ProfileID, act catalog.Activity) *Platform {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activities[profile] = append(p.activities[profile], act)
	return p
}

// Uninstall drops every activity of pkg in profile
func (p *Platform) Uninstall(profile catalog.ProfileID, pkg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.activities[profile][:0]
	for _, act := range p.activities[profile] {
		if act.Package != pkg {
			kept = append(kept, act)
		}
	}
	p.activities[profile] = kept
}

// FailProfiles makes ListProfiles return err
func (p *Platform) FailProfiles(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profilesErr = err
}

// Fail makes enumeration of profile return err
func (p *Platform) Fail(profile catalog.ProfileID, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[profile] = err
}

// Panic makes enumeration of profile panic
func (p *Platform) Panic(profile catalog.ProfileID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panics[profile] = true
}

func (p *Platform) ListProfiles(_ context.Context) ([]catalog.ProfileID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.profilesErr != nil {
		return nil, p.profilesErr
	}
	return append([]catalog.ProfileID(nil), p.profiles...), nil
}

func (p *Platform) ListLaunchableActivities(_ context.Context, profile catalog.ProfileID) ([]catalog.Activity, error) {
	if p.Hook != nil {
		p.Hook(profile)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics[profile] {
		panic("launcher service died")
	}
	if err := p.errs[profile]; err != nil {
		return nil, err
	}
	return append([]catalog.Activity(nil), p.activities[profile]...), nil
}

// Store is an in-memory preference store
type Store struct {
	mu       sync.Mutex
	renames  map[string]string
	hidden   map[string]struct{}
	migrated bool
	writes   int
	readErr  error
}

// NewStore creates a store holding the given hidden keys
func NewStore(hidden ...string) *Store {
	s := &Store{
		renames: make(map[string]string),
		hidden:  make(map[string]struct{}),
	}
	for _, key := range hidden {
		s.hidden[key] = struct{}{}
	}
	return s
}

func (s *Store) RenameLabels() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.renames)
}

func (s *Store) SetRenameLabel(pkg, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label == "" {
		delete(s.renames, pkg)
		return nil
	}
	s.renames[pkg] = label
	return nil
}

func (s *Store) HiddenApps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hiddenLocked()
}

func (s *Store) SetHiddenApps(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setHiddenLocked(keys)
	return nil
}

func (s *Store) UpdateHiddenApps(fn func(set map[string]struct{})) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	set := maps.Clone(s.hidden)
	fn(set)
	s.writes++
	s.hidden = set
	return s.hiddenLocked(), nil
}

func (s *Store) MigrateHiddenApps(upgrade func(keys []string) []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrated {
		return nil
	}
	s.setHiddenLocked(upgrade(s.hiddenLocked()))
	s.migrated = true
	return nil
}

// FailHiddenReads makes UpdateHiddenApps fail with err
func (s *Store) FailHiddenReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *Store) hiddenLocked() []string {
	keys := make([]string, 0, len(s.hidden))
	for key := range s.hidden {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) setHiddenLocked(keys []string) {
	s.writes++
	s.hidden = make(map[string]struct{}, len(keys))
	for _, key := range keys {
		s.hidden[key] = struct{}{}
	}
}

func (s *Store) HiddenAppsMigrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrated
}

func (s *Store) SetHiddenAppsMigrated(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.migrated = done
	return nil
}

// HiddenWrites counts writes of the hidden set
func (s *Store) HiddenWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
