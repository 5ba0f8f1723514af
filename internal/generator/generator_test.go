package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCoverage(t *testing.T) {
	corpus, err := Generate(Config{N: 100, Seed: 42})
	require.NoError(t, err)
	require.Len(t, corpus, 100)

	type key struct {
		domain, region string
		options        int
	}
	cells := map[key]bool{}
	for _, s := range corpus[:80] {
		cells[key{s.Context["domain"], s.Context["region"], len(s.Options)}] = true
	}
	assert.Len(t, cells, 80, "first 80 scenarios should cover every grid cell")

	assert.Equal(t, "scn-0000", corpus[0].ID)
	assert.Equal(t, "scn-0099", corpus[99].ID)
}

func TestGenerateInvariants(t *testing.T) {
	corpus, err := Generate(Config{N: 150, Seed: 7})
	require.NoError(t, err)

	violations, total := 0, 0
	for _, s := range corpus {
		require.NoError(t, s.Validate())
		assert.GreaterOrEqual(t, len(s.Options), MinOptions)
		assert.LessOrEqual(t, len(s.Options), MaxOptions)

		permissible := false
		bestGap, worstGap := -2.0, 2.0
		for _, o := range s.Options {
			permissible = permissible || !o.ViolatesConstraint
			if o.ViolatesConstraint {
				violations++
			}
			total++
			gap := o.Benefit - o.Harm
			bestGap = max(bestGap, gap)
			worstGap = min(worstGap, gap)
		}
		assert.True(t, permissible, "%s has no permissible option", s.ID)
		assert.Greater(t, bestGap-worstGap, 0.3, "%s lacks a dominant/dominated spread", s.ID)
	}
	rate := float64(violations) / float64(total)
	assert.InDelta(t, ViolationRate, rate, 0.06)
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(Config{N: 90, Seed: 3})
	require.NoError(t, err)
	b, err := Generate(Config{N: 90, Seed: 3})
	require.NoError(t, err)
	c, err := Generate(Config{N: 90, Seed: 4})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerateSmallAndInvalid(t *testing.T) {
	corpus, err := Generate(Config{N: 0, Seed: 1})
	require.NoError(t, err)
	assert.Empty(t, corpus)

	_, err = Generate(Config{N: -1})
	assert.Error(t, err)
}
