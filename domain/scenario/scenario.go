package scenario

import (
	"fmt"
	"math"

	"bondfuzz/domain/core"
)

// Option is one selectable alternative. Numeric attributes are conceptually in [0,1]
// but any finite value is accepted.
type Option struct {
	ID                 string  `json:"id" yaml:"id"`
	Label              string  `json:"label" yaml:"label"`
	Harm               float64 `json:"harm" yaml:"harm"`
	Benefit            float64 `json:"benefit" yaml:"benefit"`
	Urgency            float64 `json:"urgency" yaml:"urgency"`
	ViolatesConstraint bool    `json:"violates_constraint" yaml:"violates_constraint"`
}

// Vector returns the attribute vector used for semantic distance: harm, benefit, violation, urgency.
func (o Option) Vector() []float64 {
	violates := 0.0
	if o.ViolatesConstraint {
		violates = 1.0
	}
	return []float64{o.Harm, o.Benefit, violates, o.Urgency}
}

// Scenario is a decision problem. Option order is presentation detail only.
type Scenario struct {
	ID          string            `json:"id" yaml:"id"`
	Description string            `json:"description" yaml:"description"`
	Options     []Option          `json:"options" yaml:"options"`
	Context     map[string]string `json:"context" yaml:"context"`
}

// New builds a scenario with its own empty context map
func New(id, description string, options ...Option) Scenario {
	opts := make([]Option, len(options))
	copy(opts, options)
	return Scenario{
		ID:          id,
		Description: description,
		Options:     opts,
		Context:     map[string]string{},
	}
}

// Clone returns a deep copy; the result shares no slices or maps with s
func (s Scenario) Clone() Scenario {
	out := Scenario{
		ID:          s.ID,
		Description: s.Description,
		Options:     make([]Option, len(s.Options)),
		Context:     make(map[string]string, len(s.Context)),
	}
	copy(out.Options, s.Options)
	for k, v := range s.Context {
		out.Context[k] = v
	}
	return out
}

// Validate checks the structural invariants: at least one option, unique IDs, finite numerics.
func (s Scenario) Validate() error {
	if len(s.Options) == 0 {
		return core.NewScenarioError(s.ID, core.ErrEmptyOptions)
	}
	seen := make(map[string]struct{}, len(s.Options))
	for i, o := range s.Options {
		if _, dup := seen[o.ID]; dup {
			return core.NewScenarioError(s.ID, fmt.Errorf("%w: %q", core.ErrDuplicateOption, o.ID))
		}
		seen[o.ID] = struct{}{}
		for _, v := range []float64{o.Harm, o.Benefit, o.Urgency} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.NewScenarioError(s.ID, fmt.Errorf("%w: option %d", core.ErrNonFinite, i))
			}
		}
	}
	return nil
}

// OptionByID returns the option with the given identifier
func (s Scenario) OptionByID(id string) (Option, bool) {
	for _, o := range s.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// EvaluationResult is an evaluator's answer. Only Selection is used for distance.
type EvaluationResult struct {
	Selection  string  `json:"selection"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}
