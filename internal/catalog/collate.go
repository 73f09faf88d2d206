package catalog

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type textCollator struct {
	mu  sync.Mutex
	c   *collate.Collator
	buf collate.Buffer
}

// NewCollator returns a case-insensitive collator for the given language
func NewCollator(tag language.Tag) Collator {
	return &textCollator{c: collate.New(tag, collate.IgnoreCase)}
}

// Key returns a comparable key for label. Keys from the same collator
// order with bytes.Compare.
func (t *textCollator) Key(label string) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.c.KeyFromString(&t.buf, label)
	out := make([]byte, len(key))
	copy(out, key)
	t.buf.Reset()
	return out
}
