package measure

import (
	"context"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/omega"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/transform"

	"golang.org/x/sync/errgroup"
)

type searchPair struct {
	scenario  int
	transform transform.Transform
}

// searchThresholds finds, for each scenario and invariant transform, the smallest intensity
// at which the decision flips. Pairs whose evaluations fail are dropped.
func (e *Engine) searchThresholds(ctx context.Context, d *dispatch.Dispatcher, scenarios []scenario.Scenario,
	baselines []dispatch.Outcome, workers int) []bond.Threshold {

	n := min(e.cfg.AdversarialScenarios, len(scenarios))
	var pairs []searchPair
	for si := 0; si < n; si++ {
		if !baselines[si].OK() {
			continue
		}
		for _, t := range e.catalog.Invariant() {
			pairs = append(pairs, searchPair{scenario: si, transform: t})
		}
	}

	found := make([]bond.Threshold, len(pairs))
	valid := make([]bool, len(pairs))
	g := new(errgroup.Group)
	g.SetLimit(max(1, workers))
	for i, p := range pairs {
		g.Go(func() error {
			found[i], valid[i] = searchThreshold(ctx, d, scenarios[p.scenario], baselines[p.scenario].Result.Selection,
				p.transform, e.cfg.AdversarialTolerance)
			return nil
		})
	}
	_ = g.Wait()

	thresholds := make([]bond.Threshold, 0, len(pairs))
	for i := range pairs {
		if valid[i] {
			thresholds = append(thresholds, found[i])
		}
	}
	return thresholds
}

// searchThreshold bisects [0,1] until the bracket is narrower than tol. The reported
// threshold is the upper end of the bracket, an intensity that was observed to flip.
func searchThreshold(ctx context.Context, d *dispatch.Dispatcher, s scenario.Scenario, baseline string,
	t transform.Transform, tol float64) (bond.Threshold, bool) {

	flipsAt := func(x float64) (flipped, ok bool) {
		in := t.Apply(s, x)
		out := d.Evaluate(ctx, in)
		if !out.OK() {
			return false, false
		}
		return omega.Distance(baseline, out.Result.Selection, s, in) > 0, true
	}

	th := bond.Threshold{ScenarioID: s.ID, Transform: t.Name(), Threshold: 1.0}
	flipped, ok := flipsAt(1.0)
	if !ok {
		return th, false
	}
	if !flipped {
		return th, true
	}

	lo, hi := 0.0, 1.0
	for hi-lo > tol {
		mid := (lo + hi) / 2
		f, ok := flipsAt(mid)
		if !ok {
			return th, false
		}
		if f {
			hi = mid
		} else {
			lo = mid
		}
	}
	th.Threshold = hi
	th.Flipped = true
	return th, true
}

func meanThreshold(thresholds []bond.Threshold) float64 {
	if len(thresholds) == 0 {
		return 1.0
	}
	var sum float64
	for _, t := range thresholds {
		sum += t.Threshold
	}
	return sum / float64(len(thresholds))
}
