package canon

import (
	"testing"

	"bondfuzz/domain/scenario"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and trim", "  Give Resource To The North Group ", "give resource to the north group"},
		{"parenthetical", "repair the east bridge (weighing consequences)", "repair the east bridge"},
		{"bracketed ref", "fund the west program [ref 42]", "fund the west program"},
		{"nested annotation", "fund the (draft [v2]) program", "fund the program"},
		{"boilerplate prefix", "Recommended action: treat patient in the south ward first", "treat patient in the south ward first"},
		{"stacked prefixes", "Option: Proposed: repair the north bridge", "repair the north bridge"},
		{"lens prefix", "From an autonomy perspective: Plan: fund the east program", "fund the east program"},
		{"paraphrase", "Allocate supplies to the central cohort", "give resource to the central group"},
		{"paraphrase multi", "restore the west overpass", "repair the west bridge"},
		{"only prefix", "Option:", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.input))
		})
	}
}

func TestNormalizeLabelIdempotent(t *testing.T) {
	inputs := []string{
		"From a duty perspective: CANDIDATE: Bankroll the North Scheme (honouring obligations) [ref 10]",
		"plan: option: attend case in the wing first",
		"x",
	}
	for _, in := range inputs {
		once := NormalizeLabel(in)
		assert.Equal(t, once, NormalizeLabel(once), in)
	}
}

func sample() scenario.Scenario {
	s := scenario.New("scn-1", "desc",
		scenario.Option{ID: "o1", Label: "Option: Fund the North Program", Harm: 0.512345, Benefit: 0.3, Urgency: 0.2},
		scenario.Option{ID: "o2", Label: "finance the south initiative (fairly)", Harm: 0.1, Benefit: 0.9, Urgency: 0.7},
		scenario.Option{ID: "o3", Label: "fund the east program", Harm: 0.1, Benefit: 0.9, Urgency: 0.7, ViolatesConstraint: true},
		scenario.Option{ID: "o4", Label: "fund the west program", Harm: 0.1, Benefit: 0.9, Urgency: 0.1},
	)
	s.Context["domain"] = "public_policy"
	return s
}

func TestCanonicalizeOrdering(t *testing.T) {
	c := Canonicalize(sample())

	ids := make([]string, len(c.Options))
	for i, o := range c.Options {
		ids[i] = o.ID
	}
	// permissible before violating, then urgency, then the high-harm option last
	assert.Equal(t, []string{"o4", "o2", "o3", "o1"}, ids)
	assert.Equal(t, 0.5123, c.Options[3].Harm)
	assert.Equal(t, "fund the south program", c.Options[1].Label)
	assert.Equal(t, "public_policy", c.Context["domain"])
}

func TestCanonicalizeIdempotent(t *testing.T) {
	once := Canonicalize(sample())
	twice := Canonicalize(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("canonicalize not idempotent (-once +twice):\n%s", diff)
	}
}

func TestCanonicalizeDoesNotMutate(t *testing.T) {
	s := sample()
	_ = Canonicalize(s)
	assert.Equal(t, "Option: Fund the North Program", s.Options[0].Label)
	assert.Equal(t, "o1", s.Options[0].ID)
}

func TestCanonicalizeEmptyPassesThrough(t *testing.T) {
	s := scenario.New("empty", "nothing here")
	c := Canonicalize(s)
	assert.Empty(t, c.Options)
	assert.Equal(t, "nothing here", c.Description)
}

func TestCanonicalizeStableTies(t *testing.T) {
	s := scenario.New("tie", "",
		scenario.Option{ID: "b", Label: "same", Harm: 0.5, Benefit: 0.5, Urgency: 0.5},
		scenario.Option{ID: "a", Label: "same", Harm: 0.5, Benefit: 0.5, Urgency: 0.5},
	)
	c := Canonicalize(s)
	assert.Equal(t, "b", c.Options[0].ID)
	assert.Equal(t, "a", c.Options[1].ID)
}

func TestHashes(t *testing.T) {
	s := sample()
	reordered := s.Clone()
	reordered.Options[0], reordered.Options[3] = reordered.Options[3], reordered.Options[0]
	reordered.Options[0].ID = "renamed"

	assert.Equal(t, ContentHash(s), ContentHash(reordered))
	assert.NotEqual(t, SurfaceHash(s), SurfaceHash(reordered))
	assert.Equal(t, SurfaceHash(s), SurfaceHash(s.Clone()))

	changed := s.Clone()
	changed.Options[1].Benefit = 0.2
	assert.NotEqual(t, ContentHash(s), ContentHash(changed))
}
