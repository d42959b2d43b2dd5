// Package output writes feature tables as CSV files.
package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cognicore/booktags/pkg/booktags/pivot"
)

// Fixed output file names.
const (
	FractionalFile = "book_data.csv"
	BinaryFile     = "book_data_binary.csv"
	LogFile        = "book_data_log.csv"
)

const writeBufSize = 1 << 20

// FileName returns the fixed file name for an encoding.
func FileName(enc pivot.Encoding) (string, error) {
	switch enc {
	case pivot.Fractional:
		return FractionalFile, nil
	case pivot.Binary:
		return BinaryFile, nil
	case pivot.Log:
		return LogFile, nil
	default:
		return "", fmt.Errorf("no output file for %s encoding", enc)
	}
}

// FormatCell renders a value the way the encoding is stored on disk.
// NaN becomes an empty cell.
func FormatCell(enc pivot.Encoding, v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if enc == pivot.Binary {
		if v != 0 {
			return "1"
		}
		return "0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes a table to dir/name. The file is written under a
// temporary name and renamed into place once complete.
func WriteCSV(dir, name string, t pivot.Table) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, writeBufSize)
	w := csv.NewWriter(bw)

	header := make([]string, 0, len(t.Columns)+2)
	header = append(header, "book_id", "goodreads_book_id")
	header = append(header, t.Columns...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range t.Rows {
		record[0] = strconv.FormatInt(row.BookID, 10)
		record[1] = strconv.FormatInt(row.GoodreadsID, 10)
		for j, v := range row.Values {
			record[j+2] = FormatCell(t.Encoding, v)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write book %d: %w", row.BookID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// WriteAll writes each table under its encoding's fixed file name and
// returns the paths written.
func WriteAll(dir string, tables ...pivot.Table) ([]string, error) {
	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		name, err := FileName(t.Encoding)
		if err != nil {
			return paths, err
		}
		if err := WriteCSV(dir, name, t); err != nil {
			return paths, err
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}
