package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed search.yaml
var defaultSearchYAML []byte

// SearchSettings tunes ranking, snippets and highlighting
type SearchSettings struct {
	Language  string            `yaml:"language"`
	Headline  HeadlineSettings  `yaml:"headline"`
	Snippet   SnippetSettings   `yaml:"snippet"`
	Fallback  FallbackSettings  `yaml:"fallback"`
	Highlight HighlightSettings `yaml:"highlight"`
}

// HeadlineSettings maps onto ts_headline options
type HeadlineSettings struct {
	MaxWords     int `yaml:"max_words"`
	MinWords     int `yaml:"min_words"`
	ShortWord    int `yaml:"short_word"`
	MaxFragments int `yaml:"max_fragments"`
}

// Options renders the ts_headline option string
func (h HeadlineSettings) Options() string {
	return fmt.Sprintf("MaxWords=%d, MinWords=%d, ShortWord=%d, HighlightAll=false, MaxFragments=%d",
		h.MaxWords, h.MinWords, h.ShortWord, h.MaxFragments)
}

// SnippetSettings bounds manually windowed snippets
type SnippetSettings struct {
	MaxLength    int `yaml:"max_length"`
	WindowBefore int `yaml:"window_before"`
	WindowAfter  int `yaml:"window_after"`
}

// FallbackSettings controls substring-search snippets and scoring
type FallbackSettings struct {
	Window       int     `yaml:"window"`
	PrefixLength int     `yaml:"prefix_length"`
	Rank         float64 `yaml:"rank"`
}

// HighlightSettings is the marker wrapped around matched terms
type HighlightSettings struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// DefaultSearchSettings returns the embedded settings
func DefaultSearchSettings() *SearchSettings {
	s, err := ParseSearchSettings(defaultSearchYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded search.yaml is invalid: %v", err))
	}
	return s
}

// LoadSearchSettings reads path over the embedded defaults. Empty path returns the defaults.
func LoadSearchSettings(path string) (*SearchSettings, error) {
	if path == "" {
		return DefaultSearchSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read search settings: %w", err)
	}
	return ParseSearchSettings(data)
}

// ParseSearchSettings decodes YAML on top of the embedded defaults
func ParseSearchSettings(data []byte) (*SearchSettings, error) {
	s := &SearchSettings{}
	if err := yaml.Unmarshal(defaultSearchYAML, s); err != nil {
		return nil, fmt.Errorf("parse default search settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse search settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SearchSettings) validate() error {
	switch {
	case s.Language == "":
		return fmt.Errorf("search settings: language is required")
	case s.Snippet.MaxLength <= 0:
		return fmt.Errorf("search settings: snippet.max_length must be positive")
	case s.Snippet.WindowBefore < 0 || s.Snippet.WindowAfter <= 0:
		return fmt.Errorf("search settings: snippet window must be positive")
	case s.Fallback.Window < 0 || s.Fallback.PrefixLength <= 0:
		return fmt.Errorf("search settings: fallback window must be positive")
	case s.Highlight.Open == "" || s.Highlight.Close == "":
		return fmt.Errorf("search settings: highlight markers are required")
	}
	return nil
}
