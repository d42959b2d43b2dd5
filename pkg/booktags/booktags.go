// Package booktags turns the goodbooks-10k tag tables into per-book tag
// feature matrices.
package booktags

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/booktags/pkg/booktags/config"
	"github.com/cognicore/booktags/pkg/booktags/consolidate"
	"github.com/cognicore/booktags/pkg/booktags/dataset"
	"github.com/cognicore/booktags/pkg/booktags/internalerr"
	"github.com/cognicore/booktags/pkg/booktags/metrics"
	"github.com/cognicore/booktags/pkg/booktags/output"
	"github.com/cognicore/booktags/pkg/booktags/pivot"
	"github.com/cognicore/booktags/pkg/booktags/selector"
	"github.com/cognicore/booktags/pkg/booktags/store"
	"github.com/cognicore/booktags/pkg/booktags/tagfilter"
)

// Pipeline runs load → filter → consolidate → select → pivot → write.
type Pipeline struct {
	dataDir      string
	outputDir    string
	numberOfTags int
	vocab        *config.Vocabulary
	filter       *tagfilter.Filter
	cutoff       float64
	store        store.Store
	metrics      *metrics.Recorder
	logger       zerolog.Logger
	now          func() time.Time
	entropy      *ulid.MonotonicEntropy
}

// Options configures a Pipeline
type Options struct {
	DataDir      string
	OutputDir    string
	NumberOfTags int
	// Vocabulary defaults to config.DefaultVocabulary().
	Vocabulary *config.Vocabulary
	// BinaryCutoff defaults to pivot.DefaultBinaryCutoff when zero.
	BinaryCutoff float64
	// Store and Metrics are optional sinks.
	Store   store.Store
	Metrics *metrics.Recorder
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// New creates a Pipeline with the given options
func New(opts Options) *Pipeline {
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = config.DefaultVocabulary()
	}
	cutoff := opts.BinaryCutoff
	if cutoff == 0 {
		cutoff = pivot.DefaultBinaryCutoff
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		dataDir:      opts.DataDir,
		outputDir:    opts.OutputDir,
		numberOfTags: opts.NumberOfTags,
		vocab:        vocab,
		filter:       tagfilter.New(vocab.BlockList, vocab.ExcludedTagIDs),
		cutoff:       cutoff,
		store:        opts.Store,
		metrics:      opts.Metrics,
		logger:       logger,
		now:          now,
		entropy:      ulid.Monotonic(rand.Reader, 0),
	}
}

// Features is the in-memory result of the transform.
type Features struct {
	FilteredTags  []dataset.Tag
	Mapping       consolidate.Mapping
	Consolidation consolidate.Stats
	Selection     selector.Selection
	Raw           pivot.Table
	Fractional    pivot.Table
	Binary        pivot.Table
	Log           pivot.Table
	BooksDropped  int
}

// Result describes a finished run.
type Result struct {
	RunID string
	Files []string
	*Features
}

// Run loads the dataset, transforms it and writes the three feature tables.
// The context is checked between stages.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := p.now()
	runID := ulid.MustNew(ulid.Timestamp(started), p.entropy).String()
	log := p.logger.With().Str("run_id", runID).Logger()

	log.Info().
		Str("data_dir", p.dataDir).
		Str("output_dir", p.outputDir).
		Int("number_of_tags", p.numberOfTags).
		Msg("starting run")

	stageStart := p.now()
	ds, err := dataset.Load(p.dataDir)
	if err != nil {
		return nil, err
	}
	p.stage("load", stageStart)
	log.Info().
		Int("books", len(ds.Books)).
		Int("book_tags", len(ds.BookTags)).
		Int("ratings", len(ds.Ratings)).
		Int("tags", len(ds.Tags)).
		Msg("loaded dataset")
	if p.metrics != nil {
		p.metrics.InputRows.WithLabelValues("books").Set(float64(len(ds.Books)))
		p.metrics.InputRows.WithLabelValues("book_tags").Set(float64(len(ds.BookTags)))
		p.metrics.InputRows.WithLabelValues("ratings").Set(float64(len(ds.Ratings)))
		p.metrics.InputRows.WithLabelValues("tags").Set(float64(len(ds.Tags)))
	}

	feats, err := p.transform(ctx, ds, log)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stageStart = p.now()
	files, err := output.WriteAll(p.outputDir, feats.Fractional, feats.Binary, feats.Log)
	if err != nil {
		return nil, fmt.Errorf("write feature tables: %w", err)
	}
	p.stage("write", stageStart)
	log.Info().Strs("files", files).Int("books", len(feats.Fractional.Rows)).Msg("wrote feature tables")

	finished := p.now()
	if p.store != nil {
		if err := p.store.SaveRun(ctx, p.storeRun(runID, started, finished, feats)); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
		log.Info().Msg("saved run to store")
	}
	if p.metrics != nil {
		p.metrics.Finish(runID, finished)
	}

	log.Info().Dur("elapsed", finished.Sub(started)).Msg("run complete")
	return &Result{RunID: runID, Files: files, Features: feats}, nil
}

// Transform runs the in-memory stages on an already loaded dataset.
func (p *Pipeline) Transform(ctx context.Context, ds *dataset.Dataset) (*Features, error) {
	return p.transform(ctx, ds, p.logger)
}

func (p *Pipeline) transform(ctx context.Context, ds *dataset.Dataset, log zerolog.Logger) (*Features, error) {
	if p.numberOfTags < 0 {
		return nil, fmt.Errorf("number of tags %d: %w", p.numberOfTags, internalerr.ErrInvalidInput)
	}
	feats := &Features{}

	// Filter
	stageStart := p.now()
	feats.FilteredTags = p.filter.Apply(ds.Tags)
	p.stage("filter", stageStart)
	log.Info().
		Int("tags", len(ds.Tags)).
		Int("kept", len(feats.FilteredTags)).
		Msg("filtered tags")
	if p.metrics != nil {
		p.metrics.Tags.WithLabelValues("all").Set(float64(len(ds.Tags)))
		p.metrics.Tags.WithLabelValues("filtered").Set(float64(len(feats.FilteredTags)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Consolidate
	stageStart = p.now()
	mapping, err := consolidate.Resolve(p.vocab.Synonyms, feats.FilteredTags)
	if err != nil {
		return nil, fmt.Errorf("resolve synonyms: %w", err)
	}
	cleaned, stats := mapping.Apply(ds.BookTags)
	feats.Mapping = mapping
	feats.Consolidation = stats
	p.stage("consolidate", stageStart)
	log.Info().
		Int("synonyms", mapping.Len()).
		Int("rewritten", stats.Rewritten).
		Int("merged", stats.Merged).
		Msg("consolidated synonyms")
	if p.metrics != nil {
		p.metrics.Consolidation.WithLabelValues("rewritten").Set(float64(stats.Rewritten))
		p.metrics.Consolidation.WithLabelValues("merged").Set(float64(stats.Merged))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Select
	stageStart = p.now()
	sel, err := selector.Select(cleaned, feats.FilteredTags, ds.Tags, p.numberOfTags, p.vocab.AllowList)
	if err != nil {
		return nil, fmt.Errorf("select tags: %w", err)
	}
	feats.Selection = sel
	selected := selector.Restrict(cleaned, sel)
	p.stage("select", stageStart)
	if len(sel.MissingAllowed) > 0 {
		log.Warn().Strs("names", sel.MissingAllowed).Msg("allow-list tags not found")
	}
	log.Info().
		Int("selected", sel.Len()).
		Int("rows", len(selected)).
		Msg("selected tags")
	if p.metrics != nil {
		p.metrics.Tags.WithLabelValues("selected").Set(float64(sel.Len()))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Pivot
	stageStart = p.now()
	raw := pivot.Build(selected, dataset.TagNames(ds.Tags))
	var dropped int
	feats.Raw, dropped = pivot.Attach(raw, ds.Books)
	feats.Fractional, _ = pivot.Attach(raw.Fractional(), ds.Books)
	feats.Binary, _ = pivot.Attach(raw.Binary(p.cutoff), ds.Books)
	feats.Log, _ = pivot.Attach(raw.Log(), ds.Books)
	feats.BooksDropped = dropped
	p.stage("pivot", stageStart)
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("dropped tagged books missing from books table")
	}
	log.Info().
		Int("books", len(feats.Fractional.Rows)).
		Int("columns", len(raw.Columns)).
		Msg("pivoted feature tables")
	if p.metrics != nil {
		p.metrics.Books.WithLabelValues("written").Set(float64(len(feats.Fractional.Rows)))
		p.metrics.Books.WithLabelValues("dropped").Set(float64(dropped))
	}

	return feats, nil
}

func (p *Pipeline) stage(name string, start time.Time) {
	if p.metrics != nil {
		p.metrics.Stage(name, p.now().Sub(start))
	}
}

func (p *Pipeline) storeRun(runID string, started, finished time.Time, feats *Features) store.Run {
	run := store.Run{
		ID:           runID,
		StartedAt:    started,
		FinishedAt:   finished,
		NumberOfTags: p.numberOfTags,
		DataDir:      p.dataDir,
		OutputDir:    p.outputDir,
		BooksWritten: len(feats.Fractional.Rows),
		BooksDropped: feats.BooksDropped,
	}
	for _, e := range feats.Selection.Entries {
		run.Tags = append(run.Tags, store.SelectedTag{
			TagID:  e.TagID,
			Name:   e.Name,
			Total:  e.Total,
			Rank:   e.Rank,
			Source: e.Source.String(),
		})
	}
	run.Features = sparseFeatures(feats)
	return run
}

// sparseFeatures flattens the non-zero raw cells into long format.
func sparseFeatures(feats *Features) []store.Feature {
	var out []store.Feature
	for i, row := range feats.Raw.Rows {
		for j, count := range row.Values {
			if count == 0 {
				continue
			}
			out = append(out, store.Feature{
				BookID:      row.BookID,
				GoodreadsID: row.GoodreadsID,
				Tag:         feats.Raw.Columns[j],
				Count:       count,
				Fraction:    feats.Fractional.Rows[i].Values[j],
				Binary:      int(feats.Binary.Rows[i].Values[j]),
				Log:         feats.Log.Rows[i].Values[j],
			})
		}
	}
	return out
}
