package omega

import (
	"math"
	"testing"

	"bondfuzz/domain/scenario"

	"github.com/stretchr/testify/assert"
)

func base() scenario.Scenario {
	return scenario.New("scn-1", "pick",
		scenario.Option{ID: "o1", Label: "repair the north bridge", Harm: 0.1, Benefit: 0.9, Urgency: 0.5},
		scenario.Option{ID: "o2", Label: "repair the south bridge", Harm: 0.9, Benefit: 0.1, Urgency: 0.5},
		scenario.Option{ID: "o3", Label: "repair the east bridge", Harm: 0.15, Benefit: 0.85, Urgency: 0.5},
	)
}

func TestDistanceIdentity(t *testing.T) {
	s := base()
	assert.Equal(t, 0.0, Distance("o1", "o1", s, s))
	assert.Equal(t, 0.0, Distance(" O1 ", "o1", s, s))
	assert.Equal(t, 0.0, Distance("nonsense", "nonsense", s, s))
}

func TestDistanceSameDecisionDifferentPresentation(t *testing.T) {
	s := base()
	perturbed := s.Clone()
	perturbed.Options[0].ID = "choice-1"
	perturbed.Options[0].Label = "Option: Restore the North Overpass (weighing consequences)"

	assert.Equal(t, 0.0, Distance("o1", "choice-1", s, perturbed))
	// label selection resolves too
	assert.Equal(t, 0.0, Distance("repair the north bridge", "choice-1", s, perturbed))
}

func TestDistanceFlip(t *testing.T) {
	s := base()

	far := Distance("o1", "o2", s, s)
	near := Distance("o1", "o3", s, s)

	// |(0.8, 0.8, 0, 0)| = 1.1314, /2 = 0.5657
	assert.InDelta(t, 0.5+0.5*math.Sqrt(1.28)/2, far, 1e-9)
	assert.GreaterOrEqual(t, near, FlipFloor)
	assert.Greater(t, far, near)
}

func TestDistanceViolationCounts(t *testing.T) {
	s := base()
	s.Options[2].ViolatesConstraint = true
	withViolation := Distance("o1", "o3", s, s)
	assert.Greater(t, withViolation, 0.74)
}

func TestDistanceUnresolved(t *testing.T) {
	s := base()
	assert.Equal(t, OneUnresolved, Distance("o1", "ghost", s, s))
	assert.Equal(t, OneUnresolved, Distance("", "o2", s, s))
	assert.Equal(t, NoneResolved, Distance("ghost", "phantom", s, s))
}

func TestDistanceBounded(t *testing.T) {
	s := scenario.New("wide", "",
		scenario.Option{ID: "a", Label: "a", Harm: -50, Benefit: 80, Urgency: 3},
		scenario.Option{ID: "b", Label: "b", Harm: 90, Benefit: -10, Urgency: -7, ViolatesConstraint: true},
	)
	d := Distance("a", "b", s, s)
	assert.Equal(t, 1.0, d)

	for _, sel := range []string{"a", "b", "", "zz"} {
		for _, other := range []string{"a", "b", "", "zz"} {
			v := Distance(sel, other, s, s)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestResolvePrefersID(t *testing.T) {
	s := scenario.New("ambiguous", "",
		scenario.Option{ID: "b", Label: "a"},
		scenario.Option{ID: "a", Label: "b"},
	)
	o, ok := Resolve("a", s)
	assert.True(t, ok)
	assert.Equal(t, "b", o.Label)
}
