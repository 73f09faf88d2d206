package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// Options tune a Builder
type Options struct {
	Self    string           // Host package, never listed
	Current ProfileID        // Profile of the running process
	Workers int              // Profiles scanned concurrently
	Now     func() time.Time // Clock used for the recency flag
}

// Builder assembles catalogs from the platform registry and stored preferences
type Builder struct {
	platform Platform
	store    Store
	collator Collator
	self     string
	current  ProfileID
	workers  int
	now      func() time.Time
}

// NewBuilder creates a catalog builder. A nil collator falls back to the
// root collation order.
func NewBuilder(platform Platform, store Store, collator Collator, opts Options) *Builder {
	if collator == nil {
		collator = NewCollator(language.Und)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		platform: platform,
		store:    store,
		collator: collator,
		self:     opts.Self,
		current:  opts.Current,
		workers:  opts.Workers,
		now:      opts.Now,
	}
}

// Current returns the profile of the running process
func (b *Builder) Current() ProfileID {
	return b.current
}

// Build enumerates every profile and returns the sorted records selected by
// include. It never fails: profiles that cannot be enumerated are left out.
func (b *Builder) Build(ctx context.Context, include Include) []AppRecord {
	b.migrate()

	hidden := make(map[string]struct{})
	for _, key := range b.store.HiddenApps() {
		hidden[key] = struct{}{}
	}

	renames := b.store.RenameLabels()
	profiles := b.profiles(ctx)
	scanned := b.scan(ctx, profiles)
	now := b.now()

	seen := make(map[Identity]struct{})
	records := make([]AppRecord, 0)
	for i, profile := range profiles {
		for _, act := range scanned[i] {
			if act.Package == "" || act.Package == b.self {
				continue
			}

			id := Identity{Package: act.Package, Profile: profile}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			_, isHidden := hidden[HiddenKey(act.Package, profile)]
			if isHidden && !include.Hidden || !isHidden && !include.Regular {
				continue
			}

			records = append(records, b.record(act, profile, renames[act.Package], now))
		}
	}

	sortRecords(records)
	log.Printf("[DEBUG] Built catalog: %d records from %d profiles (regular=%v hidden=%v)",
		len(records), len(profiles), include.Regular, include.Hidden)
	return records
}

func (b *Builder) record(act Activity, profile ProfileID, label string, now time.Time) AppRecord {
	if strings.TrimSpace(label) == "" {
		label = act.Label
	}

	recent := false
	if !act.FirstInstall.IsZero() {
		recent = now.Sub(act.FirstInstall) < RecentWindow
	}

	return AppRecord{
		Label:             label,
		SortKey:           b.collator.Key(act.Label),
		Package:           act.Package,
		Component:         act.Component,
		RecentlyInstalled: recent,
		Profile:           profile,
	}
}

func (b *Builder) migrate() {
	if err := MigrateHiddenApps(b.store, b.current); err != nil {
		log.Printf("[WARN] Hidden apps migration failed: %v", err)
	}
}

func (b *Builder) profiles(ctx context.Context) []ProfileID {
	profiles, err := b.platform.ListProfiles(ctx)
	if err != nil {
		log.Printf("[WARN] Failed to list profiles, using current only: %v", err)
		return []ProfileID{b.current}
	}
	return profiles
}

// scan lists activities for every profile on a bounded worker pool. The
// returned slice is indexed like profiles; failed profiles stay nil.
func (b *Builder) scan(ctx context.Context, profiles []ProfileID) [][]Activity {
	type profileResult struct {
		order      int
		activities []Activity
	}

	out := make([][]Activity, len(profiles))
	jobs := make(chan int)
	resultChan := make(chan profileResult, len(profiles))

	workers := b.workers
	if workers > len(profiles) {
		workers = len(profiles)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				acts, err := b.listActivities(ctx, profiles[i])
				if err != nil {
					log.Printf("[WARN] Skipping profile %s: %v", profiles[i], err)
					continue
				}
				resultChan <- profileResult{order: i, activities: acts}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range profiles {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		out[res.order] = res.activities
	}
	return out
}

func (b *Builder) listActivities(ctx context.Context, profile ProfileID) (acts []Activity, err error) {
	defer func() {
		if r := recover(); r != nil {
			acts, err = nil, fmt.Errorf("platform panic: %v", r)
		}
	}()
	return b.platform.ListLaunchableActivities(ctx, profile)
}

func sortRecords(records []AppRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if c := bytes.Compare(records[i].SortKey, records[j].SortKey); c != 0 {
			return c < 0
		}
		if records[i].Package != records[j].Package {
			return records[i].Package < records[j].Package
		}
		return records[i].Profile < records[j].Profile
	})
}
