package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/booktags/pkg/booktags/internalerr"
)

//go:embed default_vocabulary.yaml
var defaultVocabulary []byte

// Synonym maps a source tag name onto its canonical target name.
type Synonym struct {
	Source string `yaml:"source" validate:"required"`
	Target string `yaml:"target" validate:"required,nefield=Source"`
}

// Vocabulary holds the tag tables the pipeline is parameterised with.
type Vocabulary struct {
	BlockList      []string  `yaml:"block_list"`
	ExcludedTagIDs []int64   `yaml:"excluded_tag_ids"`
	Synonyms       []Synonym `yaml:"synonyms" validate:"dive"`
	AllowList      []string  `yaml:"allow_list" validate:"dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseVocabulary decodes and validates a YAML vocabulary document.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if err := validate.Struct(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return &v, nil
}

// LoadVocabulary loads a vocabulary from a YAML file
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseVocabulary(data)
}

// DefaultVocabulary returns the built-in goodbooks-10k vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := ParseVocabulary(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary: %v", err))
	}
	return v
}
