package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/booktags/pkg/booktags/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	number_of_tags INTEGER NOT NULL,
	data_dir TEXT,
	output_dir TEXT,
	books_written INTEGER NOT NULL,
	books_dropped INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS selected_tags (
	run_id TEXT NOT NULL,
	tag_id INTEGER NOT NULL,
	tag_name TEXT NOT NULL,
	total INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	source TEXT NOT NULL,
	PRIMARY KEY(run_id, tag_id),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS book_features (
	run_id TEXT NOT NULL,
	book_id INTEGER NOT NULL,
	goodreads_book_id INTEGER NOT NULL,
	tag_name TEXT NOT NULL,
	count REAL NOT NULL,
	fraction REAL,
	present INTEGER NOT NULL,
	log_count REAL NOT NULL,
	PRIMARY KEY(run_id, book_id, tag_name),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_book_features_goodreads ON book_features(run_id, goodreads_book_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts the run, its tags and its features in one transaction.
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, started_at, finished_at, number_of_tags, data_dir, output_dir, books_written, books_dropped)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.NumberOfTags, r.DataDir, r.OutputDir, r.BooksWritten, r.BooksDropped)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(r.Tags) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO selected_tags (run_id, tag_id, tag_name, total, rank, source) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range r.Tags {
			if _, err := stmt.ExecContext(ctx, r.ID, t.TagID, t.Name, t.Total, t.Rank, t.Source); err != nil {
				return fmt.Errorf("insert tag %d: %w", t.TagID, err)
			}
		}
	}

	if len(r.Features) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO book_features (run_id, book_id, goodreads_book_id, tag_name, count, fraction, present, log_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range r.Features {
			var fraction sql.NullFloat64
			if !math.IsNaN(f.Fraction) {
				fraction = sql.NullFloat64{Float64: f.Fraction, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, r.ID, f.BookID, f.GoodreadsID, f.Tag, f.Count, fraction, f.Binary, f.Log); err != nil {
				return fmt.Errorf("insert feature %d/%s: %w", f.BookID, f.Tag, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun loads a run header; tags and features are not populated.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	var (
		r                 store.Run
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, number_of_tags, data_dir, output_dir, books_written, books_dropped
FROM runs WHERE id = ?`, id).Scan(
		&r.ID, &started, &finished, &r.NumberOfTags, &r.DataDir, &r.OutputDir, &r.BooksWritten, &r.BooksDropped)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return store.Run{}, false, err
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// SelectedTags returns the tags of a run in rank order, allow-list
// additions last.
func (s *sqliteStore) SelectedTags(ctx context.Context, runID string) ([]store.SelectedTag, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tag_id, tag_name, total, rank, source FROM selected_tags
WHERE run_id = ?
ORDER BY CASE WHEN rank = 0 THEN 1 ELSE 0 END, rank, tag_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SelectedTag
	for rows.Next() {
		var t store.SelectedTag
		if err := rows.Scan(&t.TagID, &t.Name, &t.Total, &t.Rank, &t.Source); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BookFeatures returns the stored features of one book, ordered by tag name.
func (s *sqliteStore) BookFeatures(ctx context.Context, runID string, goodreadsID int64) ([]store.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT book_id, goodreads_book_id, tag_name, count, fraction, present, log_count FROM book_features
WHERE run_id = ? AND goodreads_book_id = ?
ORDER BY tag_name`, runID, goodreadsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Feature
	for rows.Next() {
		var (
			f        store.Feature
			fraction sql.NullFloat64
		)
		if err := rows.Scan(&f.BookID, &f.GoodreadsID, &f.Tag, &f.Count, &fraction, &f.Binary, &f.Log); err != nil {
			return nil, err
		}
		f.Fraction = math.NaN()
		if fraction.Valid {
			f.Fraction = fraction.Float64
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
