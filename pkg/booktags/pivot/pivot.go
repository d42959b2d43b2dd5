// Package pivot reshapes (book, tag, count) rows into wide per-book feature
// matrices.
package pivot

import (
	"math"
	"sort"

	"github.com/cognicore/booktags/pkg/booktags/dataset"
)

// DefaultBinaryCutoff is the fraction a tag must exceed to count as present.
const DefaultBinaryCutoff = 0.1

// Encoding names the transformation applied to raw counts.
type Encoding int

const (
	Raw Encoding = iota
	Fractional
	Binary
	Log
)

func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Fractional:
		return "fractional"
	case Binary:
		return "binary"
	case Log:
		return "log"
	default:
		return "unknown"
	}
}

// Matrix is a dense book × tag-name matrix. Books are goodreads ids in
// ascending order, Columns are tag names in ascending order.
type Matrix struct {
	Encoding Encoding
	Books    []int64
	Columns  []string
	Values   [][]float64
}

// Build pivots rows into a raw count matrix. names resolves tag ids to
// column names; rows whose tag has no name are skipped. Tags sharing a name
// share a column and their counts are summed. Missing cells are 0.
func Build(rows []dataset.BookTag, names map[int64]string) *Matrix {
	bookSet := make(map[int64]struct{})
	colSet := make(map[string]struct{})
	for _, r := range rows {
		name, ok := names[r.TagID]
		if !ok {
			continue
		}
		bookSet[r.GoodreadsBookID] = struct{}{}
		colSet[name] = struct{}{}
	}

	m := &Matrix{
		Encoding: Raw,
		Books:    make([]int64, 0, len(bookSet)),
		Columns:  make([]string, 0, len(colSet)),
	}
	for b := range bookSet {
		m.Books = append(m.Books, b)
	}
	sort.Slice(m.Books, func(i, j int) bool { return m.Books[i] < m.Books[j] })
	for c := range colSet {
		m.Columns = append(m.Columns, c)
	}
	sort.Strings(m.Columns)

	rowIdx := make(map[int64]int, len(m.Books))
	for i, b := range m.Books {
		rowIdx[b] = i
	}
	colIdx := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		colIdx[c] = i
	}

	m.Values = make([][]float64, len(m.Books))
	for i := range m.Values {
		m.Values[i] = make([]float64, len(m.Columns))
	}
	for _, r := range rows {
		name, ok := names[r.TagID]
		if !ok {
			continue
		}
		m.Values[rowIdx[r.GoodreadsBookID]][colIdx[name]] += float64(r.Count)
	}
	return m
}

// RowSums returns the sum of every row.
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, len(m.Values))
	for i, row := range m.Values {
		for _, v := range row {
			sums[i] += v
		}
	}
	return sums
}

func (m *Matrix) derive(enc Encoding, fn func(i int, v float64) float64) *Matrix {
	out := &Matrix{
		Encoding: enc,
		Books:    m.Books,
		Columns:  m.Columns,
		Values:   make([][]float64, len(m.Values)),
	}
	for i, row := range m.Values {
		dst := make([]float64, len(row))
		for j, v := range row {
			dst[j] = fn(i, v)
		}
		out.Values[i] = dst
	}
	return out
}

// Fractional divides every cell of a raw matrix by its row sum. A row whose
// sum is zero becomes NaN in every cell.
func (m *Matrix) Fractional() *Matrix {
	sums := m.RowSums()
	return m.derive(Fractional, func(i int, v float64) float64 {
		if sums[i] == 0 {
			return math.NaN()
		}
		return v / sums[i]
	})
}

// Binary marks cells whose fractional value exceeds cutoff with 1. NaN
// compares false and becomes 0.
func (m *Matrix) Binary(cutoff float64) *Matrix {
	frac := m.Fractional()
	return frac.derive(Binary, func(_ int, v float64) float64 {
		if v > cutoff {
			return 1
		}
		return 0
	})
}

// Log maps every raw cell to log10(count + 1).
func (m *Matrix) Log() *Matrix {
	return m.derive(Log, func(_ int, v float64) float64 {
		return math.Log10(v + 1)
	})
}
