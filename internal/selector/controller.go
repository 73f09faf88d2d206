// Package selector owns a single app selection session: the working list,
// the live filter, item commands and the one-shot result.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/0xADE/ade-appsel/internal/catalog"
	"github.com/0xADE/ade-appsel/internal/filter"
)

var (
	ErrMissingParams  = errors.New("missing launch parameters")
	ErrTerminated     = errors.New("selector terminated")
	ErrRenameDisabled = errors.New("rename is disabled")
	ErrUnknownApp     = errors.New("unknown app")
	ErrRenaming       = errors.New("rename in progress")
)

// State of a selector session
type State int

const (
	Browsing State = iota
	Confirming
	Renaming
	Terminated
)

func (s State) String() string {
	switch s {
	case Browsing:
		return "browsing"
	case Confirming:
		return "confirming"
	case Renaming:
		return "renaming"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Catalog builds the records a session browses
type Catalog interface {
	Build(ctx context.Context, include catalog.Include) []catalog.AppRecord
	Current() catalog.ProfileID
}

// Store is the preference state a session mutates
type Store interface {
	// UpdateHiddenApps edits the hidden set atomically and returns the
	// stored keys.
	UpdateHiddenApps(fn func(set map[string]struct{})) ([]string, error)
	SetRenameLabel(pkg, label string) error
}

// Menu describes the item actions offered after a long press
type Menu struct {
	Record    catalog.AppRecord
	HideLabel string // "hide" in the regular view, "show" in the hidden one
	CanRename bool
	CanDelete bool // False for system apps
}

// Option configures a Controller
type Option func(*Controller)

// WithActions sets the system actions used by Delete, Info and Hold
func WithActions(actions Actions) Option {
	return func(c *Controller) { c.actions = actions }
}

// WithNotifier sets where user notices go
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithFilter replaces the default filter function
func WithFilter(f filter.Func) Option {
	return func(c *Controller) { c.filter = f }
}

// Controller serialises all commands of one session under a single lock.
// Catalog builds run in the background and are applied under the same
// lock; a build older than the last applied one is dropped.
type Controller struct {
	req      Request
	catalog  Catalog
	store    Store
	actions  Actions
	notifier Notifier
	filter   filter.Func

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	idle    *sync.Cond
	state   State
	menu    *Menu
	working []catalog.AppRecord
	view    filter.View
	query   string
	gen     uint64
	applied uint64
	pending int

	once    sync.Once
	results chan Result
	done    chan struct{}
	final   Result
}

// New creates a session and starts the first catalog build
func New(ctx context.Context, req Request, cat Catalog, store Store, opts ...Option) *Controller {
	c := &Controller{
		req:      req,
		catalog:  cat,
		store:    store,
		notifier: logNotifier{},
		filter:   filter.Apply,
		results:  make(chan Result, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.idle = sync.NewCond(&c.mu)
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.mu.Lock()
	c.working = catalog.WithSentinel(nil, cat.Current())
	c.view = c.filter(c.working, "")
	c.rebuildLocked()
	c.mu.Unlock()

	return c
}

// Current returns the profile the session runs in
func (c *Controller) Current() catalog.ProfileID {
	return c.catalog.Current()
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns the published filtered view
func (c *Controller) View() filter.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Records = append([]catalog.AppRecord(nil), c.view.Records...)
	return v
}

// Menu returns the open item menu, if any
func (c *Controller) Menu() (Menu, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.menu == nil {
		return Menu{}, false
	}
	return *c.menu, true
}

// Lookup finds a record of the working list by its hidden key
func (c *Controller) Lookup(hiddenKey string) (catalog.AppRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.working {
		if !r.IsSentinel() && r.HiddenKey() == hiddenKey {
			return r, true
		}
	}
	return catalog.AppRecord{}, false
}

// Done is closed once the session has a result
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Results delivers the single result and is then closed
func (c *Controller) Results() <-chan Result {
	return c.results
}

// Result returns the outcome once the session has terminated
func (c *Controller) Result() (Result, bool) {
	select {
	case <-c.done:
		return c.final, true
	default:
		return Result{}, false
	}
}

// Wait blocks until no catalog build is in flight
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pending > 0 {
		c.idle.Wait()
	}
}

// Query replaces the filter text and republishes the view
func (c *Controller) Query(text string) error {
	return c.command(func() error {
		if c.state == Renaming {
			return ErrRenaming
		}
		c.state = Browsing
		c.menu = nil
		c.query = text
		c.publishLocked()
		return nil
	})
}

// Submit selects the first record of the view, if there is one
func (c *Controller) Submit() error {
	return c.command(func() error {
		if first, ok := c.view.First(); ok {
			c.finishLocked(selected(first))
		}
		return nil
	})
}

// Select picks rec as the result. Selecting the padding record does nothing.
func (c *Controller) Select(rec catalog.AppRecord) error {
	return c.command(func() error {
		if rec.IsSentinel() {
			return nil
		}
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}
		c.finishLocked(selected(r))
		return nil
	})
}

// Hold opens the item menu for rec
func (c *Controller) Hold(rec catalog.AppRecord) (Menu, error) {
	var menu Menu
	err := c.command(func() error {
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}

		menu = Menu{
			Record:    r,
			HideLabel: "hide",
			CanRename: c.req.CanRename,
			CanDelete: c.actions != nil && !c.actions.IsSystemApp(c.ctx, r.Package),
		}
		if c.req.ShowHidden {
			menu.HideLabel = "show"
		}
		c.menu = &menu
		c.state = Confirming
		return nil
	})
	return menu, err
}

// CloseMenu leaves the item menu or rename prompt
func (c *Controller) CloseMenu() error {
	return c.command(func() error {
		c.menu = nil
		c.state = Browsing
		return nil
	})
}

// BeginRename opens the rename prompt for rec
func (c *Controller) BeginRename(rec catalog.AppRecord) error {
	return c.command(func() error {
		if !c.req.CanRename {
			return ErrRenameDisabled
		}
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}
		c.menu = &Menu{Record: r, CanRename: true}
		c.state = Renaming
		return nil
	})
}

// Rename stores label as the display name of rec's package. A blank label
// changes nothing and asks the user for a name.
func (c *Controller) Rename(rec catalog.AppRecord, label string) error {
	return c.command(func() error {
		if !c.req.CanRename {
			return ErrRenameDisabled
		}
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}

		label = strings.TrimSpace(label)
		if label == "" {
			c.menu = &Menu{Record: r, CanRename: true}
			c.state = Renaming
			c.notifier.Notify(NoticeNameRequired)
			return nil
		}

		if err := c.store.SetRenameLabel(r.Package, label); err != nil {
			return fmt.Errorf("failed to store rename label: %w", err)
		}
		log.Printf("[DEBUG] Renamed %s to %q", r.Package, label)

		c.menu = nil
		c.state = Browsing
		c.rebuildLocked()
		return nil
	})
}

// ResetRename drops the rename label of rec's package
func (c *Controller) ResetRename(rec catalog.AppRecord) error {
	return c.command(func() error {
		if !c.req.CanRename {
			return ErrRenameDisabled
		}
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}
		if err := c.store.SetRenameLabel(r.Package, ""); err != nil {
			return fmt.Errorf("failed to clear rename label: %w", err)
		}

		c.menu = nil
		c.state = Browsing
		c.rebuildLocked()
		return nil
	})
}

// Hide moves rec out of the browsed partition. In the hidden view this
// unhides it; emptying the hidden set cancels the session.
func (c *Controller) Hide(rec catalog.AppRecord) error {
	return c.command(func() error {
		r, idx, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}

		keys, err := c.store.UpdateHiddenApps(func(set map[string]struct{}) {
			if c.req.ShowHidden {
				delete(set, r.Package)
				delete(set, r.HiddenKey())
			} else {
				set[r.HiddenKey()] = struct{}{}
			}
		})
		if err != nil {
			return fmt.Errorf("failed to store hidden apps: %w", err)
		}

		c.working = append(c.working[:idx:idx], c.working[idx+1:]...)
		c.view.Records = removeRecord(c.view.Records, r.Key())
		c.menu = nil
		c.state = Browsing

		if len(keys) == 0 {
			c.finishLocked(Result{Kind: Cancelled})
			return nil
		}
		c.rebuildLocked()
		return nil
	})
}

// Delete asks the platform to uninstall rec. System apps are refused with
// a notice.
func (c *Controller) Delete(rec catalog.AppRecord) error {
	return c.command(func() error {
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}
		if c.actions == nil {
			return errors.ErrUnsupported
		}
		if c.actions.IsSystemApp(c.ctx, r.Package) {
			c.notifier.Notify(NoticeSystemApp)
			return nil
		}
		if err := c.actions.Uninstall(c.ctx, r.Package, r.Profile); err != nil {
			return fmt.Errorf("failed to uninstall %s: %w", r.Package, err)
		}
		c.rebuildLocked()
		return nil
	})
}

// Info opens the platform's details screen for rec
func (c *Controller) Info(rec catalog.AppRecord) error {
	return c.command(func() error {
		r, _, ok := c.lookupLocked(rec.Key())
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownApp, rec.HiddenKey())
		}
		if c.actions == nil {
			return errors.ErrUnsupported
		}
		if err := c.actions.OpenAppInfo(c.ctx, r.Package, r.Profile); err != nil {
			log.Printf("[WARN] Failed to open app info for %s: %v", r.Package, err)
			c.notifier.Notify(NoticeAppInfoFailed)
		}
		return nil
	})
}

// Refresh rebuilds the catalog in the background
func (c *Controller) Refresh() error {
	return c.command(func() error {
		c.rebuildLocked()
		return nil
	})
}

// Dismiss ends the session without a selection
func (c *Controller) Dismiss() error {
	return c.command(func() error {
		c.finishLocked(Result{Kind: Cancelled})
		return nil
	})
}

func (c *Controller) command(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Terminated {
		return ErrTerminated
	}
	return fn()
}

func (c *Controller) include() catalog.Include {
	if c.req.ShowHidden {
		return catalog.Include{Hidden: true}
	}
	return catalog.Include{Regular: true}
}

func (c *Controller) rebuildLocked() {
	c.gen++
	gen := c.gen
	c.pending++

	go func() {
		records := c.catalog.Build(c.ctx, c.include())

		c.mu.Lock()
		defer c.mu.Unlock()
		c.applyLocked(gen, records)
		c.pending--
		c.idle.Broadcast()
	}()
}

func (c *Controller) applyLocked(gen uint64, records []catalog.AppRecord) {
	if c.state == Terminated || gen < c.applied {
		return
	}
	c.applied = gen
	c.working = catalog.WithSentinel(records, c.catalog.Current())
	c.publishLocked()
}

// publishLocked refilters the working list and fires auto launch when a
// typed query leaves exactly one app.
func (c *Controller) publishLocked() {
	c.view = c.filter(c.working, c.query)

	if c.state == Renaming || strings.TrimSpace(c.query) == "" || !c.view.AutoLaunch {
		return
	}
	if sole, ok := c.view.Sole(); ok {
		log.Printf("[DEBUG] Auto launching %s for query %q", sole.Package, c.query)
		c.finishLocked(selected(sole))
	}
}

func (c *Controller) finishLocked(r Result) {
	c.once.Do(func() {
		c.state = Terminated
		c.menu = nil
		c.final = r
		c.results <- r
		close(c.results)
		close(c.done)
		c.cancel()
		log.Printf("[DEBUG] Selector finished: %s", r)
	})
}

func (c *Controller) lookupLocked(id catalog.Identity) (catalog.AppRecord, int, bool) {
	if id.Package == "" {
		return catalog.AppRecord{}, -1, false
	}
	for i, r := range c.working {
		if r.Key() == id {
			return r, i, true
		}
	}
	return catalog.AppRecord{}, -1, false
}

func removeRecord(records []catalog.AppRecord, id catalog.Identity) []catalog.AppRecord {
	out := make([]catalog.AppRecord, 0, len(records))
	for _, r := range records {
		if r.IsSentinel() || r.Key() != id {
			out = append(out, r)
		}
	}
	return out
}
