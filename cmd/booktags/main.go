package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognicore/booktags/pkg/booktags"
	"github.com/cognicore/booktags/pkg/booktags/config"
	"github.com/cognicore/booktags/pkg/booktags/metrics"
	"github.com/cognicore/booktags/pkg/booktags/store"
	"github.com/cognicore/booktags/pkg/booktags/store/sqlite"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// parseFlags applies command-line flags on top of environment settings.
func parseFlags(args []string, s *config.Settings, stderr io.Writer) error {
	fs := flag.NewFlagSet("booktags", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&s.NumberOfTags, "number-of-tags", 0, "Number of most popular tags to keep (required)")
	fs.IntVar(&s.NumberOfTags, "n", 0, "Shorthand for --number-of-tags")
	fs.StringVar(&s.OutputDir, "output-dir", "", "Directory for the feature CSV files (required)")
	fs.StringVar(&s.OutputDir, "o", "", "Shorthand for --output-dir")
	fs.StringVar(&s.DataDir, "data-dir", s.DataDir, "Directory holding books.csv, book_tags.csv, ratings.csv and tags.csv")
	fs.StringVar(&s.VocabularyPath, "vocabulary", s.VocabularyPath, "Vocabulary YAML file (optional, built-in vocabulary if empty)")
	fs.StringVar(&s.SQLitePath, "sqlite", s.SQLitePath, "Also export the run to this SQLite database (optional)")
	fs.StringVar(&s.MetricsFile, "metrics-file", s.MetricsFile, "Write Prometheus textfile metrics here (optional)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if s.NumberOfTags <= 0 {
		fmt.Fprintln(stderr, "--number-of-tags required (positive integer)")
		fs.Usage()
		return flag.ErrHelp
	}
	if s.OutputDir == "" {
		fmt.Fprintln(stderr, "--output-dir required")
		fs.Usage()
		return flag.ErrHelp
	}
	return nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(stderr, "load settings: %v\n", err)
		return exitError
	}
	if err := parseFlags(args, settings, stderr); err != nil {
		return exitUsage
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger := newLogger(settings.AppEnv, settings.LogLevel, stderr)

	loader := config.Loader{VocabularyPath: settings.VocabularyPath}
	components, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return exitError
	}

	var st store.Store
	if settings.SQLitePath != "" {
		st, err = sqlite.OpenSQLite(ctx, settings.SQLitePath)
		if err != nil {
			logger.Error().Err(err).Str("path", settings.SQLitePath).Msg("failed to open sqlite store")
			return exitError
		}
		defer st.Close()
	}

	var rec *metrics.Recorder
	if settings.MetricsFile != "" {
		rec = metrics.New()
	}

	pipeline := booktags.New(booktags.Options{
		DataDir:      settings.DataDir,
		OutputDir:    settings.OutputDir,
		NumberOfTags: settings.NumberOfTags,
		Vocabulary:   components.Vocabulary,
		BinaryCutoff: settings.BinaryCutoff,
		Store:        st,
		Metrics:      rec,
		Logger:       &logger,
	})

	_, err = pipeline.Run(ctx)
	if rec != nil {
		if werr := rec.WriteTextfile(settings.MetricsFile); werr != nil {
			logger.Error().Err(werr).Str("path", settings.MetricsFile).Msg("failed to write metrics")
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("run canceled")
		} else {
			logger.Error().Err(err).Msg("run failed")
		}
		return exitError
	}
	return exitOK
}

func newLogger(appEnv, level string, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if appEnv == "local" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(out).With().Timestamp().Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}
