// Package omega computes the semantic distance between two decisions.
package omega

import (
	"math"
	"strings"

	"bondfuzz/domain/canon"
	"bondfuzz/domain/scenario"

	"gonum.org/v1/gonum/floats"
)

const (
	// FlipFloor is the minimum distance charged for any genuine decision change
	FlipFloor = 0.5
	// OneUnresolved is charged when exactly one selection cannot be matched to an option
	OneUnresolved = 0.6
	// NoneResolved is charged when neither selection can be matched
	NoneResolved = 0.75

	// vectorScale is the diameter of the unit 4-cube, the largest distance between
	// attribute vectors with components in [0,1]
	vectorScale = 2.0
)

// Distance returns Ω in [0,1] between the decision sel1 made on s1 and sel2 made on s2.
// Identical decisions score 0; any flip scores at least FlipFloor, rising toward 1 as the
// chosen options grow semantically further apart.
func Distance(sel1, sel2 string, s1, s2 scenario.Scenario) float64 {
	if normalize(sel1) == normalize(sel2) {
		return 0
	}

	o1, ok1 := Resolve(sel1, s1)
	o2, ok2 := Resolve(sel2, s2)
	switch {
	case ok1 && ok2:
	case ok1 || ok2:
		return OneUnresolved
	default:
		return NoneResolved
	}

	if canon.NormalizeLabel(o1.Label) == canon.NormalizeLabel(o2.Label) {
		return 0
	}

	d := floats.Distance(o1.Vector(), o2.Vector(), 2) / vectorScale
	d = clamp(d, 0, 1)
	return clamp(math.Max(FlipFloor, FlipFloor+0.5*d), 0, 1)
}

// Resolve finds the option a selection refers to: by identifier first, then by label.
func Resolve(selection string, s scenario.Scenario) (scenario.Option, bool) {
	n := normalize(selection)
	if n == "" {
		return scenario.Option{}, false
	}
	for _, o := range s.Options {
		if normalize(o.ID) == n {
			return o, true
		}
	}
	for _, o := range s.Options {
		if normalize(o.Label) == n {
			return o, true
		}
	}
	for _, o := range s.Options {
		if canon.NormalizeLabel(o.Label) == canon.NormalizeLabel(selection) {
			return o, true
		}
	}
	return scenario.Option{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return hi
	}
	return math.Min(hi, math.Max(lo, v))
}
