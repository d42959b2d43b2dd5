package booktags

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/booktags/pkg/booktags/config"
	"github.com/cognicore/booktags/pkg/booktags/dataset"
	"github.com/cognicore/booktags/pkg/booktags/internalerr"
	"github.com/cognicore/booktags/pkg/booktags/metrics"
	"github.com/cognicore/booktags/pkg/booktags/output"
	"github.com/cognicore/booktags/pkg/booktags/store/sqlite"
)

type fixture struct {
	books    string
	bookTags string
	tags     string
	ratings  string
}

func writeFixture(t *testing.T, f fixture) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		dataset.BooksFile:    f.books,
		dataset.BookTagsFile: f.bookTags,
		dataset.TagsFile:     f.tags,
		dataset.RatingsFile:  f.ratings,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func scenarioFixture() fixture {
	return fixture{
		books:    "book_id,goodreads_book_id,title\n1,100,The Hobbit\n",
		bookTags: "goodreads_book_id,tag_id,count\n100,2,5\n100,3,3\n",
		tags:     "tag_id,tag_name\n1,to-read\n2,fantasy\n3,fiction\n",
		ratings:  "user_id,book_id,rating\n7,1,5\n",
	}
}

func scenarioVocabulary() *config.Vocabulary {
	return &config.Vocabulary{BlockList: []string{"to-read"}}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunEndToEndScenario(t *testing.T) {
	dataDir := writeFixture(t, scenarioFixture())
	outDir := t.TempDir()

	p := New(Options{
		DataDir:      dataDir,
		OutputDir:    outDir,
		NumberOfTags: 1,
		Vocabulary:   scenarioVocabulary(),
	})
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.RunID, 26)
	assert.Equal(t, []int64{2, 3}, tagIDs(res.FilteredTags))
	assert.Equal(t, []int64{2}, res.Selection.IDs())
	assert.Zero(t, res.BooksDropped)

	assert.Equal(t, "book_id,goodreads_book_id,fantasy\n1,100,1\n",
		readFile(t, filepath.Join(outDir, output.FractionalFile)))
	assert.Equal(t, "book_id,goodreads_book_id,fantasy\n1,100,1\n",
		readFile(t, filepath.Join(outDir, output.BinaryFile)))
	assert.Equal(t, "book_id,goodreads_book_id,fantasy\n1,100,"+strconv.FormatFloat(math.Log10(6), 'g', -1, 64)+"\n",
		readFile(t, filepath.Join(outDir, output.LogFile)))
	assert.InDelta(t, 0.778, res.Log.Rows[0].Values[0], 1e-3)
}

func TestRunWithAllowListLowersFraction(t *testing.T) {
	f := scenarioFixture()
	f.bookTags += "100,4,5\n"
	f.tags += "4,memoir\n"
	vocab := scenarioVocabulary()
	vocab.AllowList = []string{"memoir"}

	p := New(Options{DataDir: writeFixture(t, f), OutputDir: t.TempDir(), NumberOfTags: 1, Vocabulary: vocab})
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 4}, res.Selection.IDs())
	assert.Equal(t, []string{"fantasy", "memoir"}, res.Fractional.Columns)
	assert.Equal(t, []float64{0.5, 0.5}, res.Fractional.Rows[0].Values)
}

func TestTransformConsolidatesSynonyms(t *testing.T) {
	ds := &dataset.Dataset{
		Books: []dataset.Book{{ID: 1, GoodreadsID: 100}, {ID: 2, GoodreadsID: 200}},
		Tags: []dataset.Tag{
			{ID: 1, Name: "sci-fi"},
			{ID: 2, Name: "science-fiction"},
			{ID: 3, Name: "fantasy"},
			{ID: 4, Name: "owned"},
		},
		BookTags: []dataset.BookTag{
			{GoodreadsBookID: 100, TagID: 1, Count: 4},
			{GoodreadsBookID: 100, TagID: 2, Count: 6},
			{GoodreadsBookID: 100, TagID: 4, Count: 90},
			{GoodreadsBookID: 200, TagID: 3, Count: 8},
			{GoodreadsBookID: 300, TagID: 3, Count: 1}, // not in books
		},
	}
	vocab := &config.Vocabulary{
		BlockList: []string{"own"},
		Synonyms:  []config.Synonym{{Source: "sci-fi", Target: "science-fiction"}},
	}

	p := New(Options{NumberOfTags: 5, Vocabulary: vocab})
	feats, err := p.Transform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 1, feats.Consolidation.Rewritten)
	assert.Equal(t, 1, feats.Consolidation.Merged)
	assert.Equal(t, []int64{2, 3}, feats.Selection.IDs())
	assert.Equal(t, []string{"fantasy", "science-fiction"}, feats.Raw.Columns)
	require.Len(t, feats.Raw.Rows, 2)
	assert.Equal(t, []float64{0, 10}, feats.Raw.Rows[0].Values)
	assert.Equal(t, 1, feats.BooksDropped)
}

func TestTransformMissingSynonymTarget(t *testing.T) {
	ds := &dataset.Dataset{
		Tags: []dataset.Tag{{ID: 1, Name: "memoirs"}, {ID: 2, Name: "memoir-owned"}},
	}
	vocab := &config.Vocabulary{
		BlockList: []string{"own"},
		Synonyms:  []config.Synonym{{Source: "memoirs", Target: "memoir-owned"}},
	}
	_, err := New(Options{NumberOfTags: 1, Vocabulary: vocab}).Transform(context.Background(), ds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrTagNotFound))
}

func TestTransformCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{NumberOfTags: 1}).Transform(ctx, &dataset.Dataset{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformNegativeNumberOfTags(t *testing.T) {
	_, err := New(Options{NumberOfTags: -1}).Transform(context.Background(), &dataset.Dataset{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestRunIsIdempotent(t *testing.T) {
	f := fixture{
		books:    "book_id,goodreads_book_id\n1,100\n2,200\n3,300\n",
		bookTags: "goodreads_book_id,tag_id,count\n100,2,5\n100,3,5\n200,3,2\n200,5,2\n300,5,0\n",
		tags:     "tag_id,tag_name\n2,fantasy\n3,fiction\n5,horror\n",
		ratings:  "user_id,book_id,rating\n",
	}
	dataDir := writeFixture(t, f)

	run := func() map[string]string {
		outDir := t.TempDir()
		_, err := New(Options{DataDir: dataDir, OutputDir: outDir, NumberOfTags: 2, Vocabulary: &config.Vocabulary{}}).Run(context.Background())
		require.NoError(t, err)
		out := make(map[string]string)
		for _, name := range []string{output.FractionalFile, output.BinaryFile, output.LogFile} {
			out[name] = readFile(t, filepath.Join(outDir, name))
		}
		return out
	}

	first := run()
	assert.Equal(t, first, run())
	// fiction (7) and fantasy (5) outrank horror (2); book 300 only has horror.
	assert.Equal(t, "book_id,goodreads_book_id,fantasy,fiction\n1,100,0.5,0.5\n2,200,0,1\n", first[output.FractionalFile])
}

func TestRunMissingInput(t *testing.T) {
	f := scenarioFixture()
	dataDir := writeFixture(t, f)
	require.NoError(t, os.Remove(filepath.Join(dataDir, dataset.RatingsFile)))

	_, err := New(Options{DataDir: dataDir, OutputDir: t.TempDir(), NumberOfTags: 1}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRunMissingOutputDir(t *testing.T) {
	dataDir := writeFixture(t, scenarioFixture())
	outDir := filepath.Join(t.TempDir(), "missing")

	_, err := New(Options{DataDir: dataDir, OutputDir: outDir, NumberOfTags: 1, Vocabulary: scenarioVocabulary()}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRunRecordsStoreAndMetrics(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()
	rec := metrics.New()

	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	p := New(Options{
		DataDir:      writeFixture(t, scenarioFixture()),
		OutputDir:    t.TempDir(),
		NumberOfTags: 2,
		Vocabulary:   scenarioVocabulary(),
		Store:        st,
		Metrics:      rec,
		Now:          func() time.Time { return clock },
	})
	res, err := p.Run(ctx)
	require.NoError(t, err)

	run, found, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, run.BooksWritten)
	assert.True(t, clock.Equal(run.StartedAt))

	tags, err := st.SelectedTags(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "fantasy", tags[0].Name)
	assert.Equal(t, "rank", tags[0].Source)

	feats, err := st.BookFeatures(ctx, res.RunID, 100)
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, "fiction", feats[1].Tag)
	assert.InDelta(t, 0.375, feats[1].Fraction, 1e-12)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.Tags.WithLabelValues("filtered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Books.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunInfo.WithLabelValues(res.RunID)))
}

func tagIDs(tags []dataset.Tag) []int64 {
	out := make([]int64, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.ID)
	}
	return out
}
