// Package tagfilter drops shelf-housekeeping tags ("to-read", "owned",
// "favorites", ...) that say nothing about a book's content.
package tagfilter

import (
	"sort"
	"strings"

	"github.com/cognicore/booktags/pkg/booktags/dataset"
)

// Filter removes tags by name substring and by id
type Filter struct {
	substrings []string
	excluded   map[int64]struct{}
}

// New creates a filter. Empty substrings are ignored since they would match
// every tag name.
func New(blockList []string, excludedIDs []int64) *Filter {
	subs := make([]string, 0, len(blockList))
	seen := make(map[string]struct{}, len(blockList))
	for _, s := range blockList {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		subs = append(subs, s)
	}
	sort.Strings(subs)

	excluded := make(map[int64]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}
	return &Filter{substrings: subs, excluded: excluded}
}

// Blocked returns the first block-list substring contained in name.
// Matching is case-sensitive.
func (f *Filter) Blocked(name string) (string, bool) {
	for _, s := range f.substrings {
		if strings.Contains(name, s) {
			return s, true
		}
	}
	return "", false
}

// IsExcluded checks if a tag id is excluded regardless of its name
func (f *Filter) IsExcluded(id int64) bool {
	_, ok := f.excluded[id]
	return ok
}

// Keep reports whether a tag survives the filter.
func (f *Filter) Keep(t dataset.Tag) bool {
	if f.IsExcluded(t.ID) {
		return false
	}
	_, blocked := f.Blocked(t.Name)
	return !blocked
}

// Apply returns the tags that survive the filter, in input order.
func (f *Filter) Apply(tags []dataset.Tag) []dataset.Tag {
	out := make([]dataset.Tag, 0, len(tags))
	for _, t := range tags {
		if f.Keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// Substrings returns the effective block-list, sorted.
func (f *Filter) Substrings() []string {
	out := make([]string, len(f.substrings))
	copy(out, f.substrings)
	return out
}
