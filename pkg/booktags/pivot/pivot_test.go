package pivot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/booktags/pkg/booktags/dataset"
)

var names = map[int64]string{
	2: "fantasy",
	3: "fiction",
	4: "memoir",
	7: "fiction", // shares a column with 3
}

var rows = []dataset.BookTag{
	{GoodreadsBookID: 300, TagID: 4, Count: 12},
	{GoodreadsBookID: 100, TagID: 2, Count: 5},
	{GoodreadsBookID: 100, TagID: 3, Count: 3},
	{GoodreadsBookID: 200, TagID: 3, Count: 1},
	{GoodreadsBookID: 200, TagID: 7, Count: 1},
	{GoodreadsBookID: 200, TagID: 2, Count: 8},
	{GoodreadsBookID: 400, TagID: 4, Count: 0},
	{GoodreadsBookID: 500, TagID: 99, Count: 3}, // unnamed, skipped
}

func TestBuild(t *testing.T) {
	m := Build(rows, names)

	assert.Equal(t, Raw, m.Encoding)
	assert.Equal(t, []int64{100, 200, 300, 400}, m.Books)
	assert.Equal(t, []string{"fantasy", "fiction", "memoir"}, m.Columns)
	assert.Equal(t, [][]float64{
		{5, 3, 0},
		{8, 2, 0},
		{0, 0, 12},
		{0, 0, 0},
	}, m.Values)
}

func TestFractionalRowsSumToOne(t *testing.T) {
	m := Build(rows, names)
	frac := m.Fractional()
	sums := m.RowSums()

	for i, row := range frac.Values {
		if sums[i] == 0 {
			for _, v := range row {
				assert.True(t, math.IsNaN(v), "zero-total row must be NaN")
			}
			continue
		}
		var total float64
		for _, v := range row {
			total += v
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	}
	assert.InDelta(t, 0.625, frac.Values[0][0], 1e-12)
	assert.Equal(t, Fractional, frac.Encoding)
}

func TestBinaryFollowsCutoff(t *testing.T) {
	m := Build(rows, names)
	frac := m.Fractional()
	bin := m.Binary(DefaultBinaryCutoff)

	for i := range bin.Values {
		for j, v := range bin.Values[i] {
			want := 0.0
			if frac.Values[i][j] > DefaultBinaryCutoff {
				want = 1
			}
			assert.Equal(t, want, v, "cell %d,%d", i, j)
		}
	}
	assert.Equal(t, []float64{0, 0, 0}, bin.Values[3])
}

func TestBinaryCutoffIsExclusive(t *testing.T) {
	m := Build([]dataset.BookTag{
		{GoodreadsBookID: 1, TagID: 2, Count: 1},
		{GoodreadsBookID: 1, TagID: 4, Count: 9},
	}, names)
	bin := m.Binary(0.1)
	assert.Equal(t, []float64{0, 1}, bin.Values[0])
}

func TestLog(t *testing.T) {
	m := Build(rows, names)
	lg := m.Log()
	for i := range m.Values {
		for j, raw := range m.Values[i] {
			assert.Equal(t, math.Log10(raw+1), lg.Values[i][j])
		}
	}
	assert.Equal(t, 0.0, lg.Values[3][2])
}

func TestDerivedMatricesDoNotAlias(t *testing.T) {
	m := Build(rows, names)
	_ = m.Log()
	_ = m.Fractional()
	assert.Equal(t, 5.0, m.Values[0][0])
}

func TestAttach(t *testing.T) {
	m := Build(rows, names).Fractional()
	books := []dataset.Book{
		{ID: 3, GoodreadsID: 300},
		{ID: 1, GoodreadsID: 100},
		{ID: 9, GoodreadsID: 900}, // no tags
	}

	table, dropped := Attach(m, books)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, dropped, "books 200 and 400 have no book row")
	assert.Equal(t, Fractional, table.Encoding)
	assert.Equal(t, m.Columns, table.Columns)
	assert.Equal(t, int64(3), table.Rows[0].BookID)
	assert.Equal(t, int64(300), table.Rows[0].GoodreadsID)
	assert.Equal(t, []float64{0, 0, 1}, table.Rows[0].Values)
	assert.Equal(t, int64(1), table.Rows[1].BookID)
}

func TestBuildEmpty(t *testing.T) {
	m := Build(nil, names)
	assert.Empty(t, m.Books)
	assert.Empty(t, m.Columns)
	table, dropped := Attach(m.Fractional(), []dataset.Book{{ID: 1, GoodreadsID: 100}})
	assert.Empty(t, table.Rows)
	assert.Zero(t, dropped)
}
