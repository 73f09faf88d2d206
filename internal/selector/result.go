package selector

import (
	"context"
	"fmt"
	"log"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

// ResultKind tells a selection from a cancellation
type ResultKind int

const (
	Cancelled ResultKind = iota
	Selected
)

func (k ResultKind) String() string {
	if k == Selected {
		return "selected"
	}
	return "cancelled"
}

// Result is the single outcome of a selector session
type Result struct {
	Kind      ResultKind
	Package   string
	Component string
	Profile   catalog.ProfileID
}

func selected(r catalog.AppRecord) Result {
	return Result{Kind: Selected, Package: r.Package, Component: r.Component, Profile: r.Profile}
}

func (r Result) String() string {
	if r.Kind != Selected {
		return "cancelled"
	}
	return fmt.Sprintf("selected %s/%s (%s)", r.Package, r.Component, r.Profile)
}

// Notice is a transient user-facing message
type Notice int

const (
	NoticeNameRequired Notice = iota + 1
	NoticeSystemApp
	NoticeAppInfoFailed
)

func (n Notice) String() string {
	switch n {
	case NoticeNameRequired:
		return "type a new name first"
	case NoticeSystemApp:
		return "system app cannot be deleted"
	case NoticeAppInfoFailed:
		return "unable to open app"
	}
	return fmt.Sprintf("notice %d", int(n))
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type logNotifier struct{}

func (logNotifier) Notify(n Notice) {
	log.Printf("[INFO] Notice: %s", n)
}

// Actions are the system integrations behind the item menu
type Actions interface {
	IsSystemApp(ctx context.Context, pkg string) bool
	Uninstall(ctx context.Context, pkg string, profile catalog.ProfileID) error
	OpenAppInfo(ctx context.Context, pkg string, profile catalog.ProfileID) error
}
