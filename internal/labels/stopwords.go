package labels

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var defaultStopwords = []string{
	"a", "an", "the",
	"and", "or", "but", "nor",
	"of", "in", "on", "at", "to", "by", "for", "from", "with", "without",
	"into", "onto", "over", "under", "as", "is", "are", "be",
	"this", "that", "very",
}

// DefaultStopwords returns a copy of the built-in stopword list.
func DefaultStopwords() []string {
	out := make([]string, len(defaultStopwords))
	copy(out, defaultStopwords)
	return out
}

// StopwordFile is the YAML layout accepted by LoadStopwords. A bare YAML list
// is also accepted and treated as extending the defaults.
type StopwordFile struct {
	// Replace drops the built-in list instead of extending it.
	Replace   bool     `yaml:"replace"`
	Stopwords []string `yaml:"stopwords"`
}

// LoadStopwords reads a stopword file.
func LoadStopwords(path string) (StopwordFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StopwordFile{}, fmt.Errorf("read stopwords: %w", err)
	}
	return ParseStopwords(data)
}

// ParseStopwords decodes a stopword document.
func ParseStopwords(data []byte) (StopwordFile, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return StopwordFile{}, fmt.Errorf("parse stopwords: %w", err)
	}
	if len(node.Content) == 0 {
		return StopwordFile{}, nil
	}

	var f StopwordFile
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&f.Stopwords); err != nil {
			return StopwordFile{}, fmt.Errorf("parse stopwords: %w", err)
		}
	case yaml.MappingNode:
		if err := root.Decode(&f); err != nil {
			return StopwordFile{}, fmt.Errorf("parse stopwords: %w", err)
		}
	default:
		return StopwordFile{}, errors.New("parse stopwords: expected a list or a mapping")
	}
	return f, nil
}

// Options converts the file into Normalizer options.
func (f StopwordFile) Options() []Option {
	if f.Replace {
		return []Option{WithStopwords(f.Stopwords)}
	}
	return []Option{WithExtraStopwords(f.Stopwords...)}
}
