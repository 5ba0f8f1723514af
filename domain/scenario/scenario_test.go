package scenario

import (
	"math"
	"testing"

	"bondfuzz/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoOptions() Scenario {
	return New("scn-1", "pick one",
		Option{ID: "a", Label: "give resource to the north group", Harm: 0.1, Benefit: 0.9, Urgency: 0.5},
		Option{ID: "b", Label: "give resource to the south group", Harm: 0.9, Benefit: 0.1, Urgency: 0.5},
	)
}

func TestNewHasOwnContext(t *testing.T) {
	a := New("a", "")
	b := New("b", "")
	a.Context["k"] = "v"
	assert.Empty(t, b.Context)
	assert.NotNil(t, b.Context)
}

func TestCloneIsDeep(t *testing.T) {
	s := twoOptions()
	s.Context["domain"] = "test"

	c := s.Clone()
	c.Options[0].Label = "changed"
	c.Context["domain"] = "changed"

	assert.Equal(t, "give resource to the north group", s.Options[0].Label)
	assert.Equal(t, "test", s.Context["domain"])
}

func TestValidate(t *testing.T) {
	require.NoError(t, twoOptions().Validate())

	empty := New("empty", "")
	err := empty.Validate()
	assert.ErrorIs(t, err, core.ErrEmptyOptions)
	assert.True(t, core.IsInputError(err))

	dup := twoOptions()
	dup.Options[1].ID = "a"
	assert.ErrorIs(t, dup.Validate(), core.ErrDuplicateOption)

	nan := twoOptions()
	nan.Options[0].Harm = math.NaN()
	assert.ErrorIs(t, nan.Validate(), core.ErrNonFinite)

	inf := twoOptions()
	inf.Options[1].Urgency = math.Inf(1)
	assert.ErrorIs(t, inf.Validate(), core.ErrNonFinite)
}

func TestOptionVectorAndLookup(t *testing.T) {
	s := twoOptions()
	s.Options[1].ViolatesConstraint = true

	o, ok := s.OptionByID("b")
	require.True(t, ok)
	assert.Equal(t, []float64{0.9, 0.1, 1, 0.5}, o.Vector())

	_, ok = s.OptionByID("zzz")
	assert.False(t, ok)
}
