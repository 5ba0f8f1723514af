package measure

import (
	"context"
	"testing"
	"time"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/testkit"
	"bondfuzz/ports"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Intensities = []float64{0.5, 1.0}
	cfg.Chains.Count = 6
	cfg.CurvePoints = 5
	cfg.CurveScenarios = 4
	cfg.AdversarialScenarios = 2
	return cfg
}

func newEngine(t *testing.T, cfg Config, workers int) *Engine {
	t.Helper()
	dc := dispatch.DefaultConfig()
	dc.Workers = workers
	dc.Backoff = time.Millisecond
	dc.MaxBackoff = time.Millisecond
	e, err := NewEngine(cfg, WithDispatchConfig(dc))
	require.NoError(t, err)
	return e
}

func measure(t *testing.T, e *Engine, ev ports.Evaluator, corpus []scenario.Scenario) *bond.MeasurementResult {
	t.Helper()
	res, err := e.Measure(context.Background(), ev, corpus)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestMeasureIsReproducibleAcrossWorkerCounts(t *testing.T) {
	corpus := testkit.Corpus(12, 7)

	serial := measure(t, newEngine(t, smallConfig(), 1), testkit.FirstOption(), corpus)
	parallel := measure(t, newEngine(t, smallConfig(), 16), testkit.FirstOption(), corpus)
	again := measure(t, newEngine(t, smallConfig(), 16), testkit.FirstOption(), corpus)

	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("result depends on worker count (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(parallel, again); diff != "" {
		t.Errorf("repeated run differs:\n%s", diff)
	}
}

func TestMeasureStableEvaluatorIsNegligible(t *testing.T) {
	res := measure(t, newEngine(t, smallConfig(), 4), testkit.BestOption(), testkit.Corpus(10, 3))

	bd, ok := res.Index()
	require.True(t, ok)
	assert.Zero(t, bd)
	assert.Equal(t, bond.TierNegligible, res.Tier)
	assert.Zero(t, res.Failures)
	assert.Zero(t, res.EvaluatorErrors)
	assert.Empty(t, res.WorstDeviations)
	assert.False(t, res.Partial)

	assert.Len(t, res.TransformMeans, 16)
	assert.Len(t, res.StressMeans, 3)
	assert.Len(t, res.Sensitivity, 19)
	assert.Len(t, res.ChainMeans, 6)

	for _, th := range res.Thresholds {
		assert.False(t, th.Flipped)
		assert.Equal(t, 1.0, th.Threshold)
	}
	assert.Len(t, res.Thresholds, 2*16)
	assert.Equal(t, 1.0, res.MeanAdversarialThreshold)
}

func TestMeasureOrderSensitiveEvaluator(t *testing.T) {
	corpus := testkit.Corpus(10, 3)
	res := measure(t, newEngine(t, smallConfig(), 4), testkit.FirstOption(), corpus)

	bd, ok := res.Index()
	require.True(t, ok)
	assert.Greater(t, bd, 0.1)
	assert.NotEqual(t, bond.TierNegligible, res.Tier)
	assert.Greater(t, res.Failures, 0)
	assert.Greater(t, res.FailureRate, 0.0)
	assert.GreaterOrEqual(t, res.TransformMeans["reorder"], 0.5, "reorder always moves the first option")

	// total = single sweep + chains
	assert.Equal(t, len(corpus)*(19*2+6), res.TotalTests)

	require.NotEmpty(t, res.WorstDeviations)
	assert.LessOrEqual(t, len(res.WorstDeviations), 10)
	for i := 1; i < len(res.WorstDeviations); i++ {
		assert.GreaterOrEqual(t, res.WorstDeviations[i-1].Omega, res.WorstDeviations[i].Omega)
	}

	require.NotEmpty(t, res.Curve.Transform)
	require.Len(t, res.Curve.Points, 5)
	assert.Zero(t, res.Curve.Points[0].MeanOmega, "intensity 0 is the identity")
	assert.Equal(t, 1.0, res.Curve.Points[4].Intensity)

	var flipped int
	for _, th := range res.Thresholds {
		assert.GreaterOrEqual(t, th.Threshold, 0.0)
		assert.LessOrEqual(t, th.Threshold, 1.0)
		if th.Flipped {
			flipped++
		}
	}
	assert.Greater(t, flipped, 0)
	assert.Less(t, res.MeanAdversarialThreshold, 1.0)
}

func TestMeasureCountsEvaluatorErrors(t *testing.T) {
	res := measure(t, newEngine(t, smallConfig(), 4), testkit.Flaky(testkit.BestOption(), 4), testkit.Corpus(10, 3))

	assert.Greater(t, res.EvaluatorErrors, 0)
	assert.Greater(t, res.EvaluatorErrorRate, 0.0)
	assert.Less(t, res.EvaluatorErrorRate, 1.0)
	assert.Less(t, res.FailedBaselines, 10)
	assert.GreaterOrEqual(t, res.EvaluatorErrors, res.FailedBaselines)
	bd, ok := res.Index()
	require.True(t, ok, "remaining samples still define the index")
	assert.Zero(t, bd)
}

func TestMeasureAllFailingIsUndefined(t *testing.T) {
	res := measure(t, newEngine(t, smallConfig(), 4), testkit.Failing(), testkit.Corpus(4, 1))

	_, ok := res.Index()
	assert.False(t, ok)
	assert.Nil(t, res.BondIndex)
	assert.Equal(t, bond.TierUndefined, res.Tier)
	assert.Equal(t, 1.0, res.EvaluatorErrorRate)
	assert.Equal(t, 4, res.FailedBaselines)
	assert.Equal(t, res.TotalTests, res.EvaluatorErrors, "a failed baseline fails every derived sample")
	assert.Empty(t, res.Thresholds)
	assert.False(t, res.InExpectedRange())
}

func TestMeasureSkipsInvalidScenarios(t *testing.T) {
	corpus := append(testkit.Corpus(3, 1), scenario.New("empty", "no options"))
	res := measure(t, newEngine(t, smallConfig(), 2), testkit.BestOption(), corpus)

	assert.Equal(t, []string{"empty"}, res.SkippedScenarios)
	_, ok := res.Index()
	assert.True(t, ok)
}

func TestMeasureEmptyCorpus(t *testing.T) {
	res := measure(t, newEngine(t, smallConfig(), 2), testkit.BestOption(), nil)
	assert.Equal(t, bond.TierUndefined, res.Tier)
	assert.Zero(t, res.TotalTests)
}

func TestMeasureDeadlineYieldsPartialResult(t *testing.T) {
	slow := ports.EvaluatorFunc{ID: "slow", Fn: func(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
		select {
		case <-time.After(5 * time.Millisecond):
			return scenario.EvaluationResult{Selection: s.Options[0].ID}, nil
		case <-ctx.Done():
			return scenario.EvaluationResult{}, ctx.Err()
		}
	}}
	cfg := smallConfig()
	cfg.Deadline = 30 * time.Millisecond

	res := measure(t, newEngine(t, cfg, 1), slow, testkit.Corpus(20, 1))
	assert.True(t, res.Partial)
	assert.Less(t, res.TotalTests, 20*(19*2+6))
}

func TestMeasureRejectsNilEvaluator(t *testing.T) {
	e := newEngine(t, smallConfig(), 1)
	_, err := e.Measure(context.Background(), nil, testkit.Corpus(2, 1))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Intensities = nil },
		func(c *Config) { c.Intensities = []float64{0} },
		func(c *Config) { c.Intensities = []float64{1.5} },
		func(c *Config) { c.CurvePoints = 1 },
		func(c *Config) { c.AdversarialTolerance = 0 },
		func(c *Config) { c.FailureThreshold = 2 },
		func(c *Config) { c.Deadline = -time.Second },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}

	_, err := NewEngine(Config{})
	assert.Error(t, err)
}

func TestSensitivityWithoutMaxIntensityInGrid(t *testing.T) {
	cfg := smallConfig()
	cfg.Intensities = []float64{0.5}
	res := measure(t, newEngine(t, cfg, 2), testkit.FirstOption(), testkit.Corpus(4, 2))

	assert.Len(t, res.Sensitivity, 19)
	assert.GreaterOrEqual(t, res.Sensitivity["reorder"], 0.5)
}
