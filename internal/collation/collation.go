// Package collation sorts display names the way people read them:
// case-insensitive, with digit runs compared as numbers ("Class 2" < "Class 10").
package collation

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sorter builds a fresh collator per call; collate.Collator is not safe for concurrent use.
type Sorter struct {
	tag language.Tag
}

// New returns a sorter for a BCP 47 locale; unparsable locales fall back to Indonesian.
func New(locale string) Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Indonesian
	}
	return Sorter{tag: tag}
}

func (s Sorter) collator() *collate.Collator {
	return collate.New(s.tag, collate.IgnoreCase, collate.Numeric)
}

// Compare orders a and b, returning -1, 0 or +1.
func (s Sorter) Compare(a, b string) int {
	return s.collator().CompareString(a, b)
}

// SortBy stably sorts items by the name key returns.
func SortBy[T any](s Sorter, items []T, key func(T) string) {
	c := s.collator()
	slices.SortStableFunc(items, func(a, b T) int {
		return c.CompareString(key(a), key(b))
	})
}

// Strings sorts names in place.
func Strings(s Sorter, names []string) {
	SortBy(s, names, func(n string) string { return n })
}
