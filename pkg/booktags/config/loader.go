package config

import (
	"fmt"

	"github.com/cognicore/booktags/pkg/booktags/tagfilter"
)

// Loader loads the vocabulary and constructs the components that depend on it
type Loader struct {
	VocabularyPath string
}

// Components holds the loaded configuration components
type Components struct {
	Vocabulary *Vocabulary
	Filter     *tagfilter.Filter
}

// Load reads the vocabulary file, falling back to the built-in vocabulary
// when no path is set.
func (l *Loader) Load() (*Components, error) {
	vocab := DefaultVocabulary()
	if l.VocabularyPath != "" {
		v, err := LoadVocabulary(l.VocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary: %w", err)
		}
		vocab = v
	}

	return &Components{
		Vocabulary: vocab,
		Filter:     tagfilter.New(vocab.BlockList, vocab.ExcludedTagIDs),
	}, nil
}
