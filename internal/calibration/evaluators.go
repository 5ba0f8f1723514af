// Package calibration holds reference evaluators of known consistency and a harness that
// checks the measurement engine ranks them correctly.
package calibration

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
)

// tieEpsilon keeps the first of two numerically equal candidates
const tieEpsilon = 1e-12

var errAllViolate = errors.New("every option violates a hard constraint")

// merit is the decision-relevant value of an option
func merit(o scenario.Option) float64 {
	return o.Benefit - o.Harm + 0.1*o.Urgency
}

func selected(o scenario.Option, confidence float64, reasoning string) scenario.EvaluationResult {
	return scenario.EvaluationResult{Selection: o.ID, Confidence: confidence, Reasoning: reasoning}
}

// Ideal decides on the canonical form only and never picks a constraint violator
type Ideal struct{}

func (Ideal) Name() string { return "ideal" }

func (e Ideal) Evaluate(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	c := canon.Canonicalize(s)
	var best *scenario.Option
	for i := range c.Options {
		o := &c.Options[i]
		if o.ViolatesConstraint {
			continue
		}
		if best == nil || merit(*o) > merit(*best)+tieEpsilon {
			best = o
		}
	}
	if best == nil {
		return scenario.EvaluationResult{}, core.NewMalformedError(e.Name(), errAllViolate)
	}
	return selected(*best, 1, "highest merit among permissible options"), nil
}

// Leaks applied by NearIdeal on top of the ideal merit
const (
	nearFirstBonus = 0.02
	nearColonBonus = 0.01
	nearUpperBonus = 0.01
)

// NearIdeal is Ideal with small leaks from presentation: the first listed option, labels
// carrying a colon and capitalized labels get a tiny bonus. The leaks only matter on
// near-ties.
type NearIdeal struct{}

func (NearIdeal) Name() string { return "near_ideal" }

func (e NearIdeal) Evaluate(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	position := make(map[string]int, len(s.Options))
	raw := make(map[string]scenario.Option, len(s.Options))
	for i, o := range s.Options {
		position[o.ID] = i
		raw[o.ID] = o
	}

	c := canon.Canonicalize(s)
	var best *scenario.Option
	var bestScore float64
	for i := range c.Options {
		o := &c.Options[i]
		if o.ViolatesConstraint {
			continue
		}
		score := merit(*o)
		label := raw[o.ID].Label
		if position[o.ID] == 0 {
			score += nearFirstBonus
		}
		if strings.Contains(label, ":") {
			score += nearColonBonus
		}
		if r, _ := utf8.DecodeRuneInString(label); unicode.IsUpper(r) {
			score += nearUpperBonus
		}
		if best == nil || score > bestScore+tieEpsilon {
			best, bestScore = o, score
		}
	}
	if best == nil {
		return scenario.EvaluationResult{}, core.NewMalformedError(e.Name(), errAllViolate)
	}
	return selected(*best, 0.9, "merit with minor presentation bias"), nil
}

// primacy is the bonus OrderSensitive gives the first listed options
var primacy = []float64{2.0, 1.0}

// OrderSensitive reads options in presented order and strongly favors the first ones.
// Constraint violations are penalized rather than vetoed.
type OrderSensitive struct{}

func (OrderSensitive) Name() string { return "order_sensitive" }

func (OrderSensitive) Evaluate(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	best, bestScore := 0, 0.0
	for k, o := range s.Options {
		score := merit(o)
		if o.ViolatesConstraint {
			score -= 2.0
		}
		if k < len(primacy) {
			score += primacy[k]
		}
		if k == 0 || score > bestScore {
			best, bestScore = k, score
		}
	}
	return selected(s.Options[best], 0.7, "favors early options"), nil
}

// SurfaceFeature is swayed by how labels look: capitals, length and annotations count
// for more than the option's merit.
type SurfaceFeature struct{}

func (SurfaceFeature) Name() string { return "surface_feature" }

func (SurfaceFeature) Evaluate(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	best, bestScore := 0, 0.0
	for k, o := range s.Options {
		score := surfaceScore(o.Label) + 0.1*(o.Benefit-o.Harm)
		if k == 0 || score > bestScore {
			best, bestScore = k, score
		}
	}
	return selected(s.Options[best], 0.6, "most prominent label"), nil
}

func surfaceScore(label string) float64 {
	score := upperRatio(label) + float64(utf8.RuneCountInString(label))/10
	if strings.ContainsAny(label, ":([") {
		score += 0.3
	}
	return score
}

func upperRatio(label string) float64 {
	var letters, upper int
	for _, r := range label {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// Chaotic picks an option from a hash of the full presented scenario. It is deterministic
// but any change to the input reshuffles its choice.
type Chaotic struct{}

func (Chaotic) Name() string { return "chaotic" }

func (e Chaotic) Evaluate(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return scenario.EvaluationResult{}, core.NewMalformedError(e.Name(), err)
	}
	sum := sha256.Sum256(raw)
	k := binary.BigEndian.Uint64(sum[:8]) % uint64(len(s.Options))
	return selected(s.Options[k], 0.5, "hash of presentation"), nil
}
