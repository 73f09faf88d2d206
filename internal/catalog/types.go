package catalog

import (
	"context"
	"fmt"
	"time"
)

// RecentWindow is how long after installation an app is flagged as new
const RecentWindow = time.Hour

// ProfileID identifies a user profile (owner, work profile, ...)
type ProfileID int

// String renders the profile the way the platform prints user handles.
// Composite hidden keys embed this form, so it must stay stable.
func (p ProfileID) String() string {
	return fmt.Sprintf("UserHandle{%d}", int(p))
}

// AppRecord is a single launchable app as presented to the selector
type AppRecord struct {
	Label             string    // Rename label, or platform label when none
	SortKey           []byte    // Collation key of the platform label
	Package           string    // Empty for the padding sentinel
	Component         string    // Activity class inside the package
	RecentlyInstalled bool      // Installed within RecentWindow of the build
	Profile           ProfileID // Owning profile
}

// Identity is the uniqueness key of a record within a catalog
type Identity struct {
	Package string
	Profile ProfileID
}

// Key returns the (package, profile) identity of the record
func (r AppRecord) Key() Identity {
	return Identity{Package: r.Package, Profile: r.Profile}
}

// HiddenKey returns the composite key stored in the hidden set
func (r AppRecord) HiddenKey() string {
	return HiddenKey(r.Package, r.Profile)
}

// IsSentinel reports whether the record is trailing padding
func (r AppRecord) IsSentinel() bool {
	return r.Package == ""
}

// OtherProfile reports whether the record lives outside the current profile
func (r AppRecord) OtherProfile(current ProfileID) bool {
	return !r.IsSentinel() && r.Profile != current
}

// HiddenKey builds the composite hidden-set key for a package and profile
func HiddenKey(pkg string, profile ProfileID) string {
	return pkg + "|" + profile.String()
}

// Sentinel returns the empty padding record appended to working lists
func Sentinel(profile ProfileID) AppRecord {
	return AppRecord{Profile: profile}
}

// WithSentinel returns a copy of records with the padding record appended
func WithSentinel(records []AppRecord, profile ProfileID) []AppRecord {
	out := make([]AppRecord, 0, len(records)+1)
	out = append(out, records...)
	return append(out, Sentinel(profile))
}

// Activity is a launchable activity as reported by the platform registry
type Activity struct {
	Package      string
	Component    string
	Label        string
	FirstInstall time.Time
}

// Platform enumerates profiles and their launchable activities
type Platform interface {
	ListProfiles(ctx context.Context) ([]ProfileID, error)
	ListLaunchableActivities(ctx context.Context, profile ProfileID) ([]Activity, error)
}

// Collator produces locale-aware, case-insensitive comparable keys
type Collator interface {
	Key(label string) []byte
}

// Store is the slice of persisted preferences the builder reads
type Store interface {
	RenameLabels() map[string]string
	HiddenApps() []string
	HiddenAppsMigrated() bool
	// MigrateHiddenApps rewrites the hidden set with upgrade and marks it
	// migrated atomically; it is a no-op once migrated.
	MigrateHiddenApps(upgrade func(keys []string) []string) error
}

// Include selects which partitions a build returns
type Include struct {
	Regular bool
	Hidden  bool
}
