package store

import (
	"context"
	"time"
)

// Store persists the results of pipeline runs
type Store interface {
	Close() error

	// SaveRun writes a run with its selected tags and features atomically.
	SaveRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	SelectedTags(ctx context.Context, runID string) ([]SelectedTag, error)
	BookFeatures(ctx context.Context, runID string, goodreadsID int64) ([]Feature, error)
}

// Run describes one execution of the pipeline
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	NumberOfTags int
	DataDir      string
	OutputDir    string
	BooksWritten int
	BooksDropped int

	Tags     []SelectedTag
	Features []Feature
}

// SelectedTag is a tag chosen as a feature column
type SelectedTag struct {
	TagID  int64
	Name   string
	Total  int64
	Rank   int
	Source string
}

// Feature is one non-zero (book, tag) cell in all encodings. Fraction is
// NaN when the book's selected tags sum to zero.
type Feature struct {
	BookID      int64
	GoodreadsID int64
	Tag         string
	Count       float64
	Fraction    float64
	Binary      int
	Log         float64
}
