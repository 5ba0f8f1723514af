package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChainName(t *testing.T) {
	c := NewChain(Step{Reorder{}, 0.5}, Step{Paraphrase{}, 1})
	assert.Equal(t, "reorder@0.50>paraphrase@1.00", c.Name)
	assert.True(t, c.SemanticInvariant())
	assert.False(t, NewChain(Step{Rescale{}, 0.5}).SemanticInvariant())
}

func TestChainFoldsLeftToRight(t *testing.T) {
	s := fixture()
	c := NewChain(Step{LabelPrefix{}, 0.3}, Step{LabelCase{}, 0.3})
	want := LabelCase{}.Apply(LabelPrefix{}.Apply(s, 0.3), 0.3)
	assert.Equal(t, want, c.Apply(s))
	assert.Equal(t, s, NewChain().Apply(s))
}

func TestGenerateChains(t *testing.T) {
	catalog := DefaultCatalog()
	cfg := DefaultChainConfig()
	chains := GenerateChains(catalog, cfg)
	require.Len(t, chains, cfg.Count)

	seen := map[string]bool{}
	for i, c := range chains {
		assert.False(t, seen[c.Name], "duplicate chain %s", c.Name)
		seen[c.Name] = true

		assert.GreaterOrEqual(t, len(c.Steps), 1)
		assert.LessOrEqual(t, len(c.Steps), 3)
		assert.True(t, c.SemanticInvariant(), c.Name)

		// coverage: heads rotate through the invariant catalog
		head := catalog.Invariant()[i%len(catalog.Invariant())].Name()
		assert.True(t, strings.HasPrefix(c.Name, head+"@"), c.Name)

		steps := map[string]bool{}
		for _, st := range c.Steps {
			assert.False(t, steps[st.Transform.Name()], "repeated step in %s", c.Name)
			steps[st.Transform.Name()] = true
			assert.Contains(t, cfg.Palette, st.Intensity)
		}
	}
}

func TestGenerateChainsDeterministic(t *testing.T) {
	names := func(seed int64) []string {
		cfg := DefaultChainConfig()
		cfg.Seed = seed
		var out []string
		for _, c := range GenerateChains(DefaultCatalog(), cfg) {
			out = append(out, c.Name)
		}
		return out
	}
	assert.Equal(t, names(7), names(7))
	assert.NotEqual(t, names(7), names(8))
}

func TestGenerateChainsEmpty(t *testing.T) {
	stressOnly, err := NewCatalog(Rescale{})
	require.NoError(t, err)
	assert.Empty(t, GenerateChains(stressOnly, DefaultChainConfig()))

	cfg := DefaultChainConfig()
	cfg.Count = 0
	assert.Empty(t, GenerateChains(DefaultCatalog(), cfg))
}
