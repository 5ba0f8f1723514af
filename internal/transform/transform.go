// Package transform holds the catalog of parametric scenario perturbations.
//
// Every transform is a pure function of (scenario, intensity). Randomized sub-choices are drawn
// from a stream seeded by (scenario ID, transform name, intensity), so a given input always
// produces the same output regardless of when or where it is applied.
package transform

import (
	"fmt"
	"math"
	"math/rand/v2"

	"bondfuzz/domain/scenario"
	"bondfuzz/ports"
)

// Transform perturbs a scenario. Invariant transforms must not change a correct evaluator's
// decision; stress transforms may.
type Transform interface {
	Name() string
	SemanticInvariant() bool
	Apply(s scenario.Scenario, intensity float64) scenario.Scenario
}

// Clamp bounds an intensity to [0,1]. NaN maps to 0.
func Clamp(intensity float64) float64 {
	if math.IsNaN(intensity) {
		return 0
	}
	return math.Min(1, math.Max(0, intensity))
}

type mutation func(out *scenario.Scenario, intensity float64, rng *rand.Rand)

// perturb runs m on a clone of s. Zero intensity returns the clone untouched.
func perturb(s scenario.Scenario, name string, intensity float64, m mutation) scenario.Scenario {
	intensity = Clamp(intensity)
	out := s.Clone()
	if intensity <= 0 {
		return out
	}
	m(&out, intensity, ports.TransformStream(s.ID, name, intensity))
	return out
}

// Catalog is the fixed, ordered set of transforms available to a measurement
type Catalog struct {
	transforms []Transform
	byName     map[string]Transform
}

// NewCatalog builds a catalog, rejecting duplicate names
func NewCatalog(transforms ...Transform) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Transform, len(transforms))}
	for _, t := range transforms {
		if _, dup := c.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate transform name %q", t.Name())
		}
		c.byName[t.Name()] = t
		c.transforms = append(c.transforms, t)
	}
	return c, nil
}

// DefaultCatalog returns the full invariant and stress families in their canonical order
func DefaultCatalog() *Catalog {
	ts := []Transform{
		Reorder{},
		ReverseOrder{},
		RelabelIDs{},
		Paraphrase{},
		LabelCase{},
		ContextInjection{},
		LabelPrefix{},
	}
	for _, lens := range Lenses() {
		ts = append(ts, Reframe{Lens: lens})
	}
	ts = append(ts, Rescale{}, GaussianNoise{}, DuplicateOption{})

	c, err := NewCatalog(ts...)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every transform in catalog order
func (c *Catalog) All() []Transform {
	out := make([]Transform, len(c.transforms))
	copy(out, c.transforms)
	return out
}

// Invariant returns the semantic-invariant transforms in catalog order
func (c *Catalog) Invariant() []Transform {
	return c.filter(true)
}

// Stress returns the stress transforms in catalog order
func (c *Catalog) Stress() []Transform {
	return c.filter(false)
}

func (c *Catalog) filter(invariant bool) []Transform {
	var out []Transform
	for _, t := range c.transforms {
		if t.SemanticInvariant() == invariant {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds a transform by name
func (c *Catalog) Lookup(name string) (Transform, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names lists transform names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.transforms))
	for i, t := range c.transforms {
		names[i] = t.Name()
	}
	return names
}
