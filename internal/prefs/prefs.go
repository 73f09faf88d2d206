// Package prefs persists rename labels, the hidden apps set and the
// migration flag in a bbolt database.
package prefs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFile        = "appsel.prefs"
	dbPermissions = 0600

	renameBucket = "rename_labels"
	hiddenBucket = "hidden_apps"
	flagsBucket  = "flags"

	hiddenAppsUpdated = "hidden_apps_updated"
)

var buckets = []string{renameBucket, hiddenBucket, flagsBucket}

// ErrClosed is returned by writes after Close
var ErrClosed = errors.New("prefs store closed")

// Store is a bbolt backed key-value store for selector preferences
type Store struct {
	mu sync.RWMutex
	db *bbolt.DB
}

// NewStoreWithDir opens or creates the store inside dir
func NewStoreWithDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := bbolt.Open(dbPath, dbPermissions, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) view(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(fn)
}

// RenameLabels returns every stored rename label
func (s *Store) RenameLabels() map[string]string {
	labels := make(map[string]string)
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(renameBucket)).ForEach(func(k, v []byte) error {
			labels[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		log.Printf("[WARN] Failed to read rename labels: %v", err)
	}
	return labels
}

// SetRenameLabel stores label for pkg. An empty label removes the entry.
func (s *Store) SetRenameLabel(pkg, label string) error {
	return s.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(renameBucket))
		if label == "" {
			return b.Delete([]byte(pkg))
		}
		return b.Put([]byte(pkg), []byte(label))
	})
}

// HiddenApps returns the hidden set in key order
func (s *Store) HiddenApps() []string {
	var keys []string
	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		keys, err = readHidden(tx)
		return err
	})
	if err != nil {
		log.Printf("[WARN] Failed to read hidden apps: %v", err)
		return []string{}
	}
	return keys
}

// UpdateHiddenApps applies fn to the hidden set and stores the result in
// one transaction, so concurrent sessions never overwrite each other. It
// returns the stored keys in order.
func (s *Store) UpdateHiddenApps(fn func(set map[string]struct{})) ([]string, error) {
	var stored []string
	err := s.update(func(tx *bbolt.Tx) error {
		keys, err := readHidden(tx)
		if err != nil {
			return fmt.Errorf("failed to read hidden apps: %w", err)
		}

		set := make(map[string]struct{}, len(keys))
		for _, key := range keys {
			set[key] = struct{}{}
		}
		fn(set)

		stored = make([]string, 0, len(set))
		for key := range set {
			if key != "" {
				stored = append(stored, key)
			}
		}
		sort.Strings(stored)
		return writeHidden(tx, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// MigrateHiddenApps rewrites the hidden set with upgrade and sets the
// migration flag in the same transaction. Once the flag is set it does
// nothing.
func (s *Store) MigrateHiddenApps(upgrade func(keys []string) []string) error {
	return s.update(func(tx *bbolt.Tx) error {
		if migrated(tx) {
			return nil
		}
		keys, err := readHidden(tx)
		if err != nil {
			return fmt.Errorf("failed to read hidden apps: %w", err)
		}
		if err := writeHidden(tx, upgrade(keys)); err != nil {
			return err
		}
		return tx.Bucket([]byte(flagsBucket)).Put([]byte(hiddenAppsUpdated), []byte{1})
	})
}

func readHidden(tx *bbolt.Tx) ([]string, error) {
	keys := make([]string, 0)
	err := tx.Bucket([]byte(hiddenBucket)).ForEach(func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

func writeHidden(tx *bbolt.Tx, keys []string) error {
	if err := tx.DeleteBucket([]byte(hiddenBucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
		return fmt.Errorf("failed to clear hidden apps: %w", err)
	}
	b, err := tx.CreateBucket([]byte(hiddenBucket))
	if err != nil {
		return fmt.Errorf("failed to recreate hidden apps: %w", err)
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := b.Put([]byte(key), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func migrated(tx *bbolt.Tx) bool {
	val := tx.Bucket([]byte(flagsBucket)).Get([]byte(hiddenAppsUpdated))
	return len(val) == 1 && val[0] == 1
}

// HiddenAppsMigrated reports whether legacy hidden keys were upgraded
func (s *Store) HiddenAppsMigrated() bool {
	var done bool
	err := s.view(func(tx *bbolt.Tx) error {
		done = migrated(tx)
		return nil
	})
	if err != nil {
		log.Printf("[WARN] Failed to read migration flag: %v", err)
	}
	return done
}

// Close closes the database. Calling it more than once is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
