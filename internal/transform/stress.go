package transform

import (
	"fmt"
	"math/rand/v2"

	"bondfuzz/domain/scenario"

	"gonum.org/v1/gonum/stat/distuv"
)

// Rescale multiplies every numeric attribute by 1+9*intensity
type Rescale struct{}

func (Rescale) Name() string            { return "rescale" }
func (Rescale) SemanticInvariant() bool { return false }

func (t Rescale) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, _ *rand.Rand) {
		factor := 1 + 9*i
		for k := range out.Options {
			o := &out.Options[k]
			o.Harm *= factor
			o.Benefit *= factor
			o.Urgency *= factor
		}
	})
}

// GaussianNoise adds N(0, (0.25*intensity)^2) noise to every numeric attribute
type GaussianNoise struct{}

func (GaussianNoise) Name() string            { return "gaussian_noise" }
func (GaussianNoise) SemanticInvariant() bool { return false }

func (t GaussianNoise) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		noise := distuv.Normal{Mu: 0, Sigma: 0.25 * i, Src: rng}
		for k := range out.Options {
			o := &out.Options[k]
			o.Harm += noise.Rand()
			o.Benefit += noise.Rand()
			o.Urgency += noise.Rand()
		}
	})
}

var alternateLabels = []string{"%s (alternate listing)", "Same as: %s", "%s [duplicate entry]"}

// DuplicateOption inserts a copy of a seeded option under an alternate label and fresh ID
type DuplicateOption struct{}

func (DuplicateOption) Name() string            { return "duplicate_option" }
func (DuplicateOption) SemanticInvariant() bool { return false }

func (t DuplicateOption) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, _ float64, rng *rand.Rand) {
		n := len(out.Options)
		if n == 0 {
			return
		}
		dup := out.Options[rng.IntN(n)]
		dup.Label = fmt.Sprintf(alternateLabels[rng.IntN(len(alternateLabels))], dup.Label)
		dup.ID = uniqueID(*out, dup.ID+"_dup")

		at := rng.IntN(n + 1)
		opts := make([]scenario.Option, 0, n+1)
		opts = append(opts, out.Options[:at]...)
		opts = append(opts, dup)
		opts = append(opts, out.Options[at:]...)
		out.Options = opts
	})
}

func uniqueID(s scenario.Scenario, id string) string {
	candidate := id
	for n := 2; ; n++ {
		if _, taken := s.OptionByID(candidate); !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", id, n)
	}
}
