package corpus

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"bondfuzz/internal/testkit"
	"bondfuzz/ports"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *ports.Corpus {
	return &ports.Corpus{ID: "c-1", Name: "sample", Seed: 42, Scenarios: testkit.Corpus(6, 42)}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"corpus.json", "corpus.yaml", "corpus.YML"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			want := sample()
			require.NoError(t, WriteFile(path, want))

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.Seed, got.Seed)
			if diff := cmp.Diff(want.Scenarios, got.Scenarios); diff != "" {
				t.Errorf("scenarios changed:\n%s", diff)
			}
		})
	}
}

func TestDecodeHandWrittenYAML(t *testing.T) {
	src := `
name: handwritten
seed: 1
scenarios:
  - id: triage-1
    description: Two patients, one bed
    options:
      - id: a
        label: admit the older patient
        harm: 0.4
        benefit: 0.6
      - id: b
        label: admit the younger patient
        harm: 0.3
        benefit: 0.7
        urgency: 0.9
        violates_constraint: true
`
	c, err := Decode(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)
	require.Len(t, c.Scenarios, 1)
	s := c.Scenarios[0]
	assert.NotNil(t, s.Context)
	assert.NoError(t, s.Validate())
	assert.True(t, s.Options[1].ViolatesConstraint)
	assert.Equal(t, 0.9, s.Options[1].Urgency)
}

func TestFormatErrors(t *testing.T) {
	_, err := FormatFor("corpus.csv")
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("{not json"), FormatJSON)
	assert.Error(t, err)

	var buf bytes.Buffer
	assert.Error(t, Encode(&buf, "toml", sample()))
}
