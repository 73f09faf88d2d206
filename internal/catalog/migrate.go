package catalog

import (
	"fmt"
	"strings"
)

// UpgradeHiddenKeys scopes bare package entries to profile. Entries that
// already carry a profile suffix are kept as they are.
func UpgradeHiddenKeys(keys []string, profile ProfileID) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.Contains(key, "|") {
			key = HiddenKey(key, profile)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// MigrateHiddenApps rewrites legacy hidden entries to composite keys once.
// The store applies the rewrite and the done flag together.
func MigrateHiddenApps(store Store, current ProfileID) error {
	if store.HiddenAppsMigrated() {
		return nil
	}

	err := store.MigrateHiddenApps(func(keys []string) []string {
		return UpgradeHiddenKeys(keys, current)
	})
	if err != nil {
		return fmt.Errorf("failed to migrate hidden apps: %w", err)
	}
	return nil
}
