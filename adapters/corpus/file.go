// Package corpus reads and writes scenario corpora as JSON or YAML files.
package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/ports"

	"gopkg.in/yaml.v3"
)

// Format is a corpus file encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported corpus file extension %q", filepath.Ext(path))
	}
}

// document is the on-disk layout
type document struct {
	ID        string              `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string              `json:"name" yaml:"name"`
	Seed      int64               `json:"seed" yaml:"seed"`
	Scenarios []scenario.Scenario `json:"scenarios" yaml:"scenarios"`
}

// Encode writes c to w
func Encode(w io.Writer, format Format, c *ports.Corpus) error {
	doc := document{ID: c.ID.String(), Name: c.Name, Seed: c.Seed, Scenarios: c.Scenarios}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown corpus format %q", format)
	}
}

// Decode reads a corpus from r. Scenario validity is not checked here; the measurement
// engine skips invalid scenarios.
func Decode(r io.Reader, format Format) (*ports.Corpus, error) {
	var doc document
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		return nil, fmt.Errorf("unknown corpus format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s corpus: %w", format, err)
	}

	for i := range doc.Scenarios {
		if doc.Scenarios[i].Context == nil {
			doc.Scenarios[i].Context = map[string]string{}
		}
	}
	return &ports.Corpus{
		ID:        core.CorpusID(doc.ID),
		Name:      doc.Name,
		Seed:      doc.Seed,
		Scenarios: doc.Scenarios,
	}, nil
}

// WriteFile encodes c into path, choosing the format from the extension
func WriteFile(path string, c *ports.Corpus) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, format, c); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile decodes the corpus at path
func ReadFile(path string) (*ports.Corpus, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, format)
}
