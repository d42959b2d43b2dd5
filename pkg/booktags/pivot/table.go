package pivot

import "github.com/cognicore/booktags/pkg/booktags/dataset"

// Row is one book of a Table.
type Row struct {
	BookID      int64
	GoodreadsID int64
	Values      []float64
}

// Table is a Matrix joined with book identifiers, ready to be written.
type Table struct {
	Encoding Encoding
	Columns  []string
	Rows     []Row
}

// Attach joins a matrix with the books table on goodreads id. Rows follow
// the order of books; books without a matrix row are left out. The second
// result is the number of matrix rows that matched no book and were dropped.
func Attach(m *Matrix, books []dataset.Book) (Table, int) {
	rowIdx := make(map[int64]int, len(m.Books))
	for i, b := range m.Books {
		rowIdx[b] = i
	}

	t := Table{Encoding: m.Encoding, Columns: m.Columns}
	matched := make(map[int64]struct{}, len(m.Books))
	for _, b := range books {
		i, ok := rowIdx[b.GoodreadsID]
		if !ok {
			continue
		}
		matched[b.GoodreadsID] = struct{}{}
		t.Rows = append(t.Rows, Row{
			BookID:      b.ID,
			GoodreadsID: b.GoodreadsID,
			Values:      m.Values[i],
		})
	}
	return t, len(m.Books) - len(matched)
}
