package transform

import (
	"fmt"
	"math/rand/v2"

	"bondfuzz/domain/scenario"
)

// Lens is an evaluative framing a reframe transform foregrounds in the text
type Lens struct {
	Name       string
	Article    string
	Annotation string
	Lead       string
}

var lenses = []Lens{
	{"outcome", "an", "(weighing consequences)", "Consider the consequences of each course of action."},
	{"duty", "a", "(honouring obligations)", "Consider the obligations owed by the decision maker."},
	{"fairness", "a", "(treating parties equitably)", "Consider how fairly each party is treated."},
	{"autonomy", "an", "(respecting individual choice)", "Consider the autonomy of those affected."},
	{"privacy", "a", "(protecting personal data)", "Consider the privacy of those involved."},
	{"systemic", "a", "(considering wider scale)", "Consider the systemic effects at scale."},
	{"character", "a", "(acting with integrity)", "Consider what a person of good character would do."},
	{"process", "a", "(following due process)", "Consider whether due process is followed."},
	{"uncertainty", "an", "(given limited confidence)", "Consider how confident we can be in the facts."},
}

// Lenses returns the nine reframing lenses in catalog order
func Lenses() []Lens {
	out := make([]Lens, len(lenses))
	copy(out, lenses)
	return out
}

// Reframe rewrites the description and labels to emphasise one lens. Numeric attributes are
// never touched. Each label gains the lens annotation with probability equal to the intensity,
// and above 0.5 a lens prefix with probability 2*(intensity-0.5).
type Reframe struct {
	Lens Lens
}

func (r Reframe) Name() string          { return "reframe_" + r.Lens.Name }
func (Reframe) SemanticInvariant() bool { return true }

func (r Reframe) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, r.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		out.Description = r.Lens.Lead + " " + out.Description
		prefix := fmt.Sprintf("From %s %s perspective: ", r.Lens.Article, r.Lens.Name)
		for k := range out.Options {
			if rng.Float64() < i {
				out.Options[k].Label += " " + r.Lens.Annotation
			}
			if i > 0.5 && rng.Float64() < (i-0.5)*2 {
				out.Options[k].Label = prefix + out.Options[k].Label
			}
		}
	})
}
