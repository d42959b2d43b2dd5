// Package selector picks the tags that become feature columns: the N most
// applied tags plus a fixed allow-list.
package selector

import (
	"fmt"
	"sort"

	"github.com/cognicore/booktags/pkg/booktags/dataset"
	"github.com/cognicore/booktags/pkg/booktags/internalerr"
)

// Source records why a tag was selected.
type Source uint8

const (
	FromRank Source = 1 << iota
	FromAllowList
)

func (s Source) String() string {
	switch s {
	case FromRank:
		return "rank"
	case FromAllowList:
		return "allow_list"
	case FromRank | FromAllowList:
		return "rank+allow_list"
	default:
		return "none"
	}
}

// Entry is one selected tag.
type Entry struct {
	TagID  int64
	Name   string
	Total  int64
	Rank   int // 1-based position in the top N, 0 when only allow-listed
	Source Source
}

// Selection is the set of selected tags. Ranked entries come first in rank
// order, followed by allow-list additions by ascending id.
type Selection struct {
	Entries        []Entry
	MissingAllowed []string // allow-list names with no tag in the full table

	index map[int64]int
}

// Contains reports whether a tag id is selected
func (s Selection) Contains(tagID int64) bool {
	_, ok := s.index[tagID]
	return ok
}

// Len returns the number of selected tags.
func (s Selection) Len() int {
	return len(s.Entries)
}

// IDs returns the selected tag ids, ascending.
func (s Selection) IDs() []int64 {
	out := make([]int64, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.TagID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Select ranks tags of the filtered table by their total count over rows and
// keeps the first n, then adds every tag of the full table whose name is on
// the allow-list.
func Select(rows []dataset.BookTag, filtered, all []dataset.Tag, n int, allowList []string) (Selection, error) {
	if n < 0 {
		return Selection{}, fmt.Errorf("number of tags %d: %w", n, internalerr.ErrInvalidInput)
	}

	keep := make(map[int64]string, len(filtered))
	for _, t := range filtered {
		keep[t.ID] = t.Name
	}

	counter := NewCounter()
	counter.AddRows(rows)

	ranked := counter.Ranked(func(id int64) bool {
		_, ok := keep[id]
		return ok
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	sel := Selection{index: make(map[int64]int, len(ranked)+len(allowList))}
	for i, tt := range ranked {
		sel.index[tt.TagID] = len(sel.Entries)
		sel.Entries = append(sel.Entries, Entry{
			TagID:  tt.TagID,
			Name:   keep[tt.TagID],
			Total:  tt.Total,
			Rank:   i + 1,
			Source: FromRank,
		})
	}

	allowed := make(map[string]struct{}, len(allowList))
	for _, name := range allowList {
		allowed[name] = struct{}{}
	}
	found := make(map[string]struct{}, len(allowList))
	var extra []Entry
	for _, t := range all {
		if _, ok := allowed[t.Name]; !ok {
			continue
		}
		found[t.Name] = struct{}{}
		if i, ok := sel.index[t.ID]; ok {
			sel.Entries[i].Source |= FromAllowList
			continue
		}
		sel.index[t.ID] = -1
		extra = append(extra, Entry{
			TagID:  t.ID,
			Name:   t.Name,
			Total:  counter.Total(t.ID),
			Source: FromAllowList,
		})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].TagID < extra[j].TagID })
	for _, e := range extra {
		sel.index[e.TagID] = len(sel.Entries)
		sel.Entries = append(sel.Entries, e)
	}

	for name := range allowed {
		if _, ok := found[name]; !ok {
			sel.MissingAllowed = append(sel.MissingAllowed, name)
		}
	}
	sort.Strings(sel.MissingAllowed)

	return sel, nil
}

// Restrict keeps the rows whose tag is selected.
func Restrict(rows []dataset.BookTag, sel Selection) []dataset.BookTag {
	out := make([]dataset.BookTag, 0, len(rows))
	for _, r := range rows {
		if sel.Contains(r.TagID) {
			out = append(out, r)
		}
	}
	return out
}
