package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
)

// Precision is the number of decimal places numeric attributes are rounded to
const Precision = 4

var roundScale = math.Pow10(Precision)

// Round rounds v to Precision decimal places
func Round(v float64) float64 {
	return math.Round(v*roundScale) / roundScale
}

// Canonicalize returns the presentation-independent normal form of s: labels normalized,
// numerics rounded, options sorted by (harm, benefit, violation, urgency, label) with the
// original order breaking ties. Canonicalize(Canonicalize(s)) equals Canonicalize(s).
func Canonicalize(s scenario.Scenario) scenario.Scenario {
	out := s.Clone()
	for i := range out.Options {
		o := &out.Options[i]
		o.Label = NormalizeLabel(o.Label)
		o.Harm = Round(o.Harm)
		o.Benefit = Round(o.Benefit)
		o.Urgency = Round(o.Urgency)
	}
	sort.SliceStable(out.Options, func(i, j int) bool {
		return less(out.Options[i], out.Options[j])
	})
	return out
}

func less(a, b scenario.Option) bool {
	if a.Harm != b.Harm {
		return a.Harm < b.Harm
	}
	if a.Benefit != b.Benefit {
		return a.Benefit < b.Benefit
	}
	if a.ViolatesConstraint != b.ViolatesConstraint {
		return !a.ViolatesConstraint
	}
	if a.Urgency != b.Urgency {
		return a.Urgency < b.Urgency
	}
	return a.Label < b.Label
}

// ContentHash identifies the decision content of a scenario: canonical labels and numerics
// only. IDs, description and context do not contribute.
func ContentHash(s scenario.Scenario) core.Hash {
	c := Canonicalize(s)
	var b strings.Builder
	for _, o := range c.Options {
		fmt.Fprintf(&b, "%s|%.4f|%.4f|%t|%.4f\n", o.Label, o.Harm, o.Benefit, o.ViolatesConstraint, o.Urgency)
	}
	return core.NewHash([]byte(b.String()))
}

// SurfaceHash identifies a scenario exactly as presented, including option order, labels,
// IDs and context. Map keys are serialized in sorted order so the hash is stable.
func SurfaceHash(s scenario.Scenario) core.Hash {
	data, err := json.Marshal(s)
	if err != nil {
		// only reachable with non-finite floats, which Validate rejects upstream
		data = []byte(fmt.Sprintf("%#v", s))
	}
	return core.NewHash(data)
}
