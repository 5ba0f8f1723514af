package measure

import (
	"context"
	"strconv"
	"testing"

	"bondfuzz/domain/scenario"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/testkit"
	"bondfuzz/internal/transform"
	"bondfuzz/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dial records its intensity in the context so an evaluator can react to it
type dial struct{}

func (dial) Name() string            { return "dial" }
func (dial) SemanticInvariant() bool { return true }

func (dial) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	out := s.Clone()
	out.Context["dial"] = strconv.FormatFloat(intensity, 'f', -1, 64)
	return out
}

// switchesAt picks option b once the dial reaches x
func switchesAt(x float64) ports.Evaluator {
	return ports.EvaluatorFunc{ID: "switch", Fn: func(_ context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
		v, _ := strconv.ParseFloat(s.Context["dial"], 64)
		if v >= x {
			return scenario.EvaluationResult{Selection: "b"}, nil
		}
		return scenario.EvaluationResult{Selection: "a"}, nil
	}}
}

func TestSearchThresholdBrackets(t *testing.T) {
	s := testkit.TwoOptions()
	d := dispatch.New(switchesAt(0.3), dispatch.DefaultConfig())

	th, ok := searchThreshold(context.Background(), d, s, "a", dial{}, 0.05)
	require.True(t, ok)
	assert.True(t, th.Flipped)
	assert.Equal(t, "dial", th.Transform)
	assert.Equal(t, s.ID, th.ScenarioID)
	assert.GreaterOrEqual(t, th.Threshold, 0.3, "threshold must be an intensity that flipped")
	assert.InDelta(t, 0.3, th.Threshold, 0.05)
}

func TestSearchThresholdNoFlip(t *testing.T) {
	s := testkit.TwoOptions()
	d := dispatch.New(switchesAt(2), dispatch.DefaultConfig())

	th, ok := searchThreshold(context.Background(), d, s, "a", dial{}, 0.05)
	require.True(t, ok)
	assert.False(t, th.Flipped)
	assert.Equal(t, 1.0, th.Threshold)
}

func TestSearchThresholdsOverCatalog(t *testing.T) {
	cfg := smallConfig()
	cfg.AdversarialScenarios = 3
	catalog, err := transform.NewCatalog(dial{})
	require.NoError(t, err)
	e, err := NewEngine(cfg, WithCatalog(catalog))
	require.NoError(t, err)

	ev := switchesAt(0.6)
	d := dispatch.New(ev, dispatch.DefaultConfig())
	corpus := testkit.Corpus(5, 1)
	baselines := d.EvaluateAll(context.Background(), corpus)

	ths := e.searchThresholds(context.Background(), d, corpus, baselines, 4)
	require.Len(t, ths, 3)
	for i, th := range ths {
		assert.Equal(t, corpus[i].ID, th.ScenarioID, "thresholds keep corpus order")
		assert.True(t, th.Flipped)
		assert.InDelta(t, 0.6, th.Threshold, 0.05)
	}
	assert.InDelta(t, 0.6, meanThreshold(ths), 0.05)
	assert.Equal(t, 1.0, meanThreshold(nil))
}
