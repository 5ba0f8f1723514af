// Package measure runs a fuzzing campaign against one evaluator and reduces the observed
// decision changes to a Bond Index.
package measure

import (
	"context"
	"errors"
	"fmt"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/transform"
	"bondfuzz/ports"
)

// Engine measures evaluators. It holds no per-run state and may be shared.
type Engine struct {
	cfg      Config
	catalog  *transform.Catalog
	dispatch dispatch.Config
	metrics  *dispatch.Metrics
	logger   *internal.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCatalog replaces the default transform catalog
func WithCatalog(c *transform.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithDispatchConfig sets worker, timeout and retry policy for evaluator calls
func WithDispatchConfig(c dispatch.Config) Option {
	return func(e *Engine) { e.dispatch = c }
}

// WithMetrics records evaluator call metrics
func WithMetrics(m *dispatch.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger
func WithLogger(l *internal.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine validates cfg and builds an engine
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid measurement config: %w", err)
	}
	e := &Engine{
		cfg:      cfg,
		catalog:  transform.DefaultCatalog(),
		dispatch: dispatch.DefaultConfig(),
		logger:   internal.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Catalog returns the transforms the engine applies
func (e *Engine) Catalog() *transform.Catalog {
	return e.catalog
}

// Measure runs the full campaign for ev over corpus:
//
//  1. single transforms over the intensity grid
//  2. generated transform chains
//  3. a dense intensity-response curve for the most sensitive invariant transform
//  4. adversarial threshold search
//  5. the sensitivity profile at maximum intensity
//
// Evaluator failures are counted, never fatal. If the deadline expires the result is
// returned with Partial set. Invalid scenarios are skipped and listed.
func (e *Engine) Measure(ctx context.Context, ev ports.Evaluator, corpus []scenario.Scenario) (*bond.MeasurementResult, error) {
	if ev == nil {
		return nil, errors.New("measure: nil evaluator")
	}
	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	log := e.logger.With("evaluator", ev.Name())
	valid, skipped := partition(corpus, log)

	res := &bond.MeasurementResult{
		Evaluator:        ev.Name(),
		Tier:             bond.TierUndefined,
		TransformMeans:   map[string]float64{},
		ChainMeans:       map[string]float64{},
		Sensitivity:      map[string]float64{},
		StressMeans:      map[string]float64{},
		WorstDeviations:  []bond.Deviation{},
		Thresholds:       []bond.Threshold{},
		SkippedScenarios: skipped,
	}
	if len(valid) == 0 {
		log.Warn("no valid scenarios to measure")
		res.MeanAdversarialThreshold = 1.0
		return res, nil
	}

	d := dispatch.New(ev, e.dispatch, dispatch.WithMetrics(e.metrics), dispatch.WithLogger(log))
	log.Info("measuring %d scenarios with %d transforms", len(valid), len(e.catalog.All()))

	baselines := d.EvaluateAll(ctx, valid)

	single := runTasks(ctx, d, valid, baselines, sweepTasks(valid, e.catalog.All(), e.cfg.Intensities))
	log.Debug("single sweep: %d samples", len(single))

	chains := transform.GenerateChains(e.catalog, e.cfg.Chains)
	chained := runTasks(ctx, d, valid, baselines, chainTasks(valid, chains))
	log.Debug("chain sweep: %d chains, %d samples", len(chains), len(chained))

	res.TransformMeans = meansBy(single, func(s sample) bool { return s.invariant })
	res.StressMeans = meansBy(single, func(s sample) bool { return !s.invariant })
	res.ChainMeans = meansBy(chained, func(sample) bool { return true })

	atMax := single
	if !e.cfg.hasMaxIntensity() {
		atMax = runTasks(ctx, d, valid, baselines, sweepTasks(valid, e.catalog.All(), []float64{1.0}))
	}
	res.Sensitivity = meansBy(atMax, func(s sample) bool { return s.intensity == 1.0 })

	if top := mostSensitive(e.catalog.Invariant(), res.TransformMeans); top != nil {
		res.Curve = e.responseCurve(ctx, d, valid, baselines, top)
	}
	res.Thresholds = e.searchThresholds(ctx, d, valid, baselines, e.dispatch.Workers)
	res.MeanAdversarialThreshold = meanThreshold(res.Thresholds)

	t := count(e.cfg.FailureThreshold, single, chained)
	res.TotalTests = t.total
	res.Failures = t.failures
	res.FailureRate = rate(t.failures, t.pooled)
	res.EvaluatorErrors = t.errors
	res.EvaluatorErrorRate = rate(t.errors, t.total)
	res.FailedBaselines = failedBaselines(baselines)
	res.WorstDeviations = worst(valid, e.cfg.WorstDeviations, single, chained)
	e.logFailures(log, valid, single, chained)

	bd, dist, err := bond.ComputeIndex(pool(single, chained))
	switch {
	case errors.Is(err, core.ErrDegenerate):
		log.Warn("no usable samples; bond index undefined")
	case err != nil:
		return nil, fmt.Errorf("compute bond index: %w", err)
	default:
		res.BondIndex = &bd
		res.Tier = bond.TierFor(bd)
		res.Omega = dist
	}

	res.Partial = ctx.Err() != nil
	if res.Partial {
		log.Warn("campaign ended early: %v", ctx.Err())
	}

	stats := d.Stats()
	log.Info("measured: bd=%s tier=%s tests=%d failures=%d errors=%d calls=%d cache_hits=%d failed_calls=%d",
		formatIndex(res.BondIndex), res.Tier, res.TotalTests, res.Failures, res.EvaluatorErrors,
		stats.Calls, stats.CacheHits, stats.Failures)
	return res, nil
}

func failedBaselines(baselines []dispatch.Outcome) int {
	n := 0
	for _, b := range baselines {
		if b.Err != nil {
			n++
		}
	}
	return n
}

// partition splits the corpus into valid scenarios and the IDs of invalid ones
func partition(corpus []scenario.Scenario, log *internal.Logger) ([]scenario.Scenario, []string) {
	valid := make([]scenario.Scenario, 0, len(corpus))
	var skipped []string
	for _, s := range corpus {
		if err := s.Validate(); err != nil {
			log.Warn("skipping %v", core.NewScenarioError(s.ID, err))
			skipped = append(skipped, s.ID)
			continue
		}
		valid = append(valid, s)
	}
	return valid, skipped
}

func (e *Engine) logFailures(log *internal.Logger, scenarios []scenario.Scenario, groups ...[]sample) {
	if log.GetLevel() < internal.LogLevelDebug {
		return
	}
	for _, samples := range groups {
		for _, smp := range samples {
			if smp.ok && smp.invariant && smp.omega > e.cfg.FailureThreshold {
				dev := deviation(scenarios, smp)
				log.Debug("failure: scenario=%s transform=%s intensity=%.2f baseline=%q perturbed=%q omega=%.4f",
					dev.ScenarioID, dev.Transform, dev.Intensity, dev.BaselineSelection, dev.PerturbedSelection, dev.Omega)
			}
		}
	}
}

func formatIndex(bd *float64) string {
	if bd == nil {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", *bd)
}
