package transform

import (
	"fmt"
	"strings"

	"bondfuzz/domain/scenario"
	"bondfuzz/ports"
)

// Step is one (transform, intensity) pair of a chain
type Step struct {
	Transform Transform
	Intensity float64
}

// Chain is an ordered composition of steps applied left to right
type Chain struct {
	Name  string
	Steps []Step
}

// NewChain builds a chain and derives its name, e.g. "reorder@0.50>paraphrase@1.00"
func NewChain(steps ...Step) Chain {
	parts := make([]string, len(steps))
	for i, st := range steps {
		parts[i] = fmt.Sprintf("%s@%.2f", st.Transform.Name(), Clamp(st.Intensity))
	}
	return Chain{Name: strings.Join(parts, ">"), Steps: steps}
}

// Apply folds the steps over s
func (c Chain) Apply(s scenario.Scenario) scenario.Scenario {
	out := s.Clone()
	for _, st := range c.Steps {
		out = st.Transform.Apply(out, st.Intensity)
	}
	return out
}

// SemanticInvariant is true when every step is invariant
func (c Chain) SemanticInvariant() bool {
	for _, st := range c.Steps {
		if !st.Transform.SemanticInvariant() {
			return false
		}
	}
	return true
}

// ChainConfig controls chain generation
type ChainConfig struct {
	Count     int
	MaxLength int
	Palette   []float64
	Seed      int64
}

// DefaultChainConfig is the configuration used by the measurement engine
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		Count:     20,
		MaxLength: 3,
		Palette:   []float64{0.25, 0.5, 0.75, 1.0},
		Seed:      42,
	}
}

// GenerateChains samples diverse chains from the invariant transforms of the catalog.
// Chain heads rotate through the invariant catalog so every transform leads at least one
// chain once Count reaches the catalog size; the remaining steps are distinct seeded picks.
// The result depends only on the catalog order and the config.
func GenerateChains(catalog *Catalog, cfg ChainConfig) []Chain {
	eligible := catalog.Invariant()
	if len(eligible) == 0 || cfg.Count <= 0 {
		return nil
	}
	maxLen := min(max(1, cfg.MaxLength), len(eligible))
	palette := cfg.Palette
	if len(palette) == 0 {
		palette = DefaultChainConfig().Palette
	}

	rng := ports.SeededStream("chains", cfg.Seed)
	chains := make([]Chain, 0, cfg.Count)
	names := make(map[string]struct{}, cfg.Count)

	for attempts := 0; len(chains) < cfg.Count && attempts < cfg.Count*20; attempts++ {
		head := eligible[len(chains)%len(eligible)]
		length := 1 + rng.IntN(maxLen)

		steps := []Step{{Transform: head, Intensity: palette[rng.IntN(len(palette))]}}
		used := map[string]struct{}{head.Name(): {}}
		for len(steps) < length {
			t := eligible[rng.IntN(len(eligible))]
			if _, dup := used[t.Name()]; dup {
				continue
			}
			used[t.Name()] = struct{}{}
			steps = append(steps, Step{Transform: t, Intensity: palette[rng.IntN(len(palette))]})
		}

		chain := NewChain(steps...)
		if _, dup := names[chain.Name]; dup {
			continue
		}
		names[chain.Name] = struct{}{}
		chains = append(chains, chain)
	}
	return chains
}
