package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/cognicore/booktags/pkg/booktags/internalerr"
)

// Settings are the run parameters. Environment values are read first and
// command-line flags override them.
type Settings struct {
	AppEnv         string  `env:"APP_ENV" envDefault:"local"`
	LogLevel       string  `env:"BOOKTAGS_LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	DataDir        string  `env:"BOOKTAGS_DATA_DIR" envDefault:"./goodbooks-10k" validate:"required"`
	VocabularyPath string  `env:"BOOKTAGS_VOCABULARY"`
	BinaryCutoff   float64 `env:"BOOKTAGS_BINARY_CUTOFF" envDefault:"0.1" validate:"gte=0,lte=1"`
	SQLitePath     string  `env:"BOOKTAGS_SQLITE"`
	MetricsFile    string  `env:"BOOKTAGS_METRICS_FILE"`

	// Set from flags only.
	NumberOfTags int    `validate:"gt=0"`
	OutputDir    string `validate:"required"`
}

// LoadSettings reads Settings from the environment and an optional .env file.
func LoadSettings() (*Settings, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional

	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	return s, nil
}

// Validate checks the settings once flags have been applied.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return nil
}
