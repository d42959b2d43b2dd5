package selector

import (
	"sort"

	"github.com/cognicore/booktags/pkg/booktags/dataset"
)

// Counter accumulates the global count of every tag across all books
type Counter struct {
	totals map[int64]int64
}

// TagTotal is a tag id with its summed count.
type TagTotal struct {
	TagID int64
	Total int64
}

// NewCounter creates an empty counter
func NewCounter() *Counter {
	return &Counter{totals: make(map[int64]int64)}
}

// Add adds count to a tag's total
func (c *Counter) Add(tagID, count int64) {
	c.totals[tagID] += count
}

// AddRows adds every row's count.
func (c *Counter) AddRows(rows []dataset.BookTag) {
	for _, r := range rows {
		c.Add(r.TagID, r.Count)
	}
}

// Total returns the summed count for a tag
func (c *Counter) Total(tagID int64) int64 {
	return c.totals[tagID]
}

// UniqueTags returns the number of distinct tags seen
func (c *Counter) UniqueTags() int {
	return len(c.totals)
}

// Ranked returns the totals of tags accepted by keep, highest total first.
// Equal totals are ordered by tag id ascending.
func (c *Counter) Ranked(keep func(tagID int64) bool) []TagTotal {
	out := make([]TagTotal, 0, len(c.totals))
	for id, total := range c.totals {
		if keep != nil && !keep(id) {
			continue
		}
		out = append(out, TagTotal{TagID: id, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].TagID < out[j].TagID
	})
	return out
}
