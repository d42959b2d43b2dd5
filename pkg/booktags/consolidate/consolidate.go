// Package consolidate folds synonymous tags ("sci-fi", "scifi") onto one
// canonical tag ("science-fiction").
package consolidate

import (
	"fmt"
	"sort"

	"github.com/cognicore/booktags/pkg/booktags/config"
	"github.com/cognicore/booktags/pkg/booktags/dataset"
	"github.com/cognicore/booktags/pkg/booktags/internalerr"
)

// Mapping rewrites source tag ids to canonical tag ids. Ids without an
// entry map to themselves.
type Mapping struct {
	ids map[int64]int64
}

// Stats describes what Apply changed.
type Stats struct {
	Rewritten int // rows whose tag id was replaced
	Merged    int // rows folded into an earlier row for the same book and tag
}

// Resolve turns name pairs into an id mapping using the filtered tag table.
// Every source and target name must be present exactly once.
func Resolve(synonyms []config.Synonym, filtered []dataset.Tag) (Mapping, error) {
	byName := make(map[string][]int64, len(filtered))
	for _, t := range filtered {
		byName[t.Name] = append(byName[t.Name], t.ID)
	}

	lookup := func(name, role string) (int64, error) {
		ids := byName[name]
		switch len(ids) {
		case 0:
			return 0, fmt.Errorf("synonym %s tag %q: %w", role, name, internalerr.ErrTagNotFound)
		case 1:
			return ids[0], nil
		default:
			return 0, fmt.Errorf("synonym %s tag %q (ids %v): %w", role, name, ids, internalerr.ErrAmbiguousTag)
		}
	}

	direct := make(map[int64]int64, len(synonyms))
	for _, syn := range synonyms {
		from, err := lookup(syn.Source, "source")
		if err != nil {
			return Mapping{}, err
		}
		to, err := lookup(syn.Target, "target")
		if err != nil {
			return Mapping{}, err
		}
		if prev, ok := direct[from]; ok && prev != to {
			return Mapping{}, fmt.Errorf("synonym source %q mapped to two targets: %w", syn.Source, internalerr.ErrInvalidConfig)
		}
		direct[from] = to
	}

	// Follow chains (a→b, b→c) so every source points at a terminal id.
	ids := make(map[int64]int64, len(direct))
	for from := range direct {
		to := from
		seen := map[int64]struct{}{from: {}}
		for {
			next, ok := direct[to]
			if !ok {
				break
			}
			if _, loop := seen[next]; loop {
				return Mapping{}, fmt.Errorf("synonym cycle through tag id %d: %w", from, internalerr.ErrInvalidConfig)
			}
			seen[next] = struct{}{}
			to = next
		}
		ids[from] = to
	}

	return Mapping{ids: ids}, nil
}

// NewMapping builds a mapping from explicit ids. Chains are not followed.
func NewMapping(ids map[int64]int64) Mapping {
	m := make(map[int64]int64, len(ids))
	for k, v := range ids {
		m[k] = v
	}
	return Mapping{ids: m}
}

// Canonical returns the canonical id for a tag id
func (m Mapping) Canonical(id int64) int64 {
	if to, ok := m.ids[id]; ok {
		return to
	}
	return id
}

// Len returns the number of source ids in the mapping.
func (m Mapping) Len() int {
	return len(m.ids)
}

// Sources returns the source ids, ascending.
func (m Mapping) Sources() []int64 {
	out := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type bookTagKey struct {
	book int64
	tag  int64
}

// Apply rewrites tag ids and sums the counts of rows that end up with the
// same book and tag. Rows keep the position of their first occurrence.
// The input slice is not modified.
func (m Mapping) Apply(rows []dataset.BookTag) ([]dataset.BookTag, Stats) {
	var stats Stats
	out := make([]dataset.BookTag, 0, len(rows))
	index := make(map[bookTagKey]int, len(rows))

	for _, r := range rows {
		tag := m.Canonical(r.TagID)
		if tag != r.TagID {
			stats.Rewritten++
		}
		key := bookTagKey{book: r.GoodreadsBookID, tag: tag}
		if i, ok := index[key]; ok {
			out[i].Count += r.Count
			stats.Merged++
			continue
		}
		index[key] = len(out)
		out = append(out, dataset.BookTag{GoodreadsBookID: r.GoodreadsBookID, TagID: tag, Count: r.Count})
	}
	return out, stats
}
