package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/booktags/pkg/booktags/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := store.Run{
		ID:           "01HQ0000000000000000000000",
		StartedAt:    started,
		FinishedAt:   started.Add(3 * time.Second),
		NumberOfTags: 2,
		DataDir:      "./goodbooks-10k",
		OutputDir:    "out",
		BooksWritten: 2,
		BooksDropped: 1,
		Tags: []store.SelectedTag{
			{TagID: 5, Name: "science", Total: 0, Rank: 0, Source: "allow_list"},
			{TagID: 3, Name: "fiction", Total: 7, Rank: 2, Source: "rank"},
			{TagID: 2, Name: "fantasy", Total: 9, Rank: 1, Source: "rank"},
		},
		Features: []store.Feature{
			{BookID: 1, GoodreadsID: 100, Tag: "fiction", Count: 3, Fraction: 0.375, Binary: 1, Log: math.Log10(4)},
			{BookID: 1, GoodreadsID: 100, Tag: "fantasy", Count: 5, Fraction: 0.625, Binary: 1, Log: math.Log10(6)},
			{BookID: 2, GoodreadsID: 200, Tag: "fantasy", Count: 0, Fraction: math.NaN(), Binary: 0, Log: 0},
		},
	}
	require.NoError(t, st.SaveRun(ctx, run))

	got, found, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, 2, got.BooksWritten)
	assert.Equal(t, 1, got.BooksDropped)

	tags, err := st.SelectedTags(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "fantasy", tags[0].Name)
	assert.Equal(t, "fiction", tags[1].Name)
	assert.Equal(t, "science", tags[2].Name)

	feats, err := st.BookFeatures(ctx, run.ID, 100)
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, "fantasy", feats[0].Tag)
	assert.InDelta(t, 0.625, feats[0].Fraction, 1e-12)

	nan, err := st.BookFeatures(ctx, run.ID, 200)
	require.NoError(t, err)
	require.Len(t, nan, 1)
	assert.True(t, math.IsNaN(nan[0].Fraction))
}

func TestGetRunMissing(t *testing.T) {
	st := openTestStore(t)
	_, found, err := st.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveRunRequiresID(t *testing.T) {
	st := openTestStore(t)
	assert.Error(t, st.SaveRun(context.Background(), store.Run{}))
}

func TestSaveRunDuplicateID(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	run := store.Run{ID: "dup", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, st.SaveRun(ctx, run))
	assert.Error(t, st.SaveRun(ctx, run))
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "/nonexistent/directory/runs.db")
	assert.Error(t, err)
}
