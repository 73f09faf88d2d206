// Package filter narrows a catalog to the records matching a typed query.
package filter

import (
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

// Func filters records by query. Implementations must be pure: the same
// arguments always yield the same View.
type Func func(records []catalog.AppRecord, query string) View

// View is the filtered subsequence of a working list
type View struct {
	Records    []catalog.AppRecord
	Query      string
	AutoLaunch bool // False when the query starts with a space
}

// Real counts the records that are not padding
func (v View) Real() int {
	n := 0
	for _, r := range v.Records {
		if !r.IsSentinel() {
			n++
		}
	}
	return n
}

// Sole returns the only non-padding record, if there is exactly one
func (v View) Sole() (catalog.AppRecord, bool) {
	if v.Real() != 1 {
		return catalog.AppRecord{}, false
	}
	return v.First()
}

// First returns the first non-padding record
func (v View) First() (catalog.AppRecord, bool) {
	for _, r := range v.Records {
		if !r.IsSentinel() {
			return r, true
		}
	}
	return catalog.AppRecord{}, false
}

// combining diacritical marks block, U+0300..U+036F
var diacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '+', ',', '.', ' ':
		return true
	}
	return false
}

// forms holds the case-folded label and its stripped variant
type forms struct {
	folded   string
	stripped string
}

func labelForms(label string) forms {
	return forms{folded: fold(label), stripped: fold(Strip(label))}
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Strip returns label without diacritics and without the separator
// characters - _ + , . and space.
func Strip(label string) string {
	stripper := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(diacritics)),
		runes.Remove(runes.Predicate(isSeparator)),
	)
	out, _, err := transform.String(stripper, label)
	if err != nil {
		return label
	}
	return out
}

// Matches reports whether label matches query
func Matches(label, query string) bool {
	return matches(labelForms(label), fold(strings.TrimSpace(query)), fold(query))
}

func matches(f forms, trimmed, raw string) bool {
	return strings.Contains(f.folded, trimmed) || strings.Contains(f.stripped, raw)
}

// Apply filters records by query without any caching
func Apply(records []catalog.AppRecord, query string) View {
	return apply(records, query, labelForms)
}

// NewCached returns a Func equivalent to Apply that keeps up to size label
// normalisations in an LRU cache.
func NewCached(size int) (Func, error) {
	cache, err := lru.New[string, forms](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create label cache: %w", err)
	}

	lookup := func(label string) forms {
		if f, ok := cache.Get(label); ok {
			return f
		}
		f := labelForms(label)
		cache.Add(label, f)
		return f
	}

	return func(records []catalog.AppRecord, query string) View {
		return apply(records, query, lookup)
	}, nil
}

func apply(records []catalog.AppRecord, query string, formsOf func(string) forms) View {
	view := View{
		Query:      query,
		AutoLaunch: !strings.HasPrefix(query, " "),
	}

	if strings.TrimSpace(query) == "" {
		view.Records = append([]catalog.AppRecord(nil), records...)
		return view
	}

	trimmed := fold(strings.TrimSpace(query))
	raw := fold(query)

	view.Records = make([]catalog.AppRecord, 0)
	for _, r := range records {
		if r.IsSentinel() {
			continue
		}
		if matches(formsOf(r.Label), trimmed, raw) {
			view.Records = append(view.Records, r)
		}
	}
	return view
}
