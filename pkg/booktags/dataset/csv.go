package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/booktags/pkg/booktags/internalerr"
)

const readBufSize = 1 << 20

// record gives column access by header name for the current row.
type record struct {
	file   string
	row    int
	cols   map[string]int
	fields []string
}

func (r *record) str(col string) string {
	return r.fields[r.cols[col]]
}

func (r *record) parseInt(col string) (int64, error) {
	raw := strings.TrimSpace(r.str(col))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s row %d column %s: %w", r.file, r.row, col, err)
	}
	return v, nil
}

// readTable streams a CSV file with a header row and calls fn for every
// data row. Columns listed in required must be present in the header.
func readTable(path string, required []string, fn func(r *record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReaderSize(f, readBufSize))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: missing header row: %w", path, internalerr.ErrInvalidInput)
		}
		return fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, col := range header {
		// A UTF-8 BOM sticks to the first column name.
		name := strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		cols[name] = i
	}
	for _, col := range required {
		if _, ok := cols[col]; !ok {
			return fmt.Errorf("%s: no column named %q: %w", path, col, internalerr.ErrInvalidInput)
		}
	}

	rec := &record{file: path, row: 1, cols: cols}
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		rec.row++
		if err != nil {
			return fmt.Errorf("read %s row %d: %w", path, rec.row, err)
		}
		rec.fields = fields
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
