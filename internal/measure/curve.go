package measure

import (
	"context"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/transform"
)

// curveGrid returns n evenly spaced intensities from 0 to 1 inclusive
func curveGrid(n int) []float64 {
	if n < 2 {
		return nil
	}
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = float64(i) / float64(n-1)
	}
	return grid
}

// responseCurve sweeps t over a dense grid on the first CurveScenarios scenarios
func (e *Engine) responseCurve(ctx context.Context, d *dispatch.Dispatcher, scenarios []scenario.Scenario,
	baselines []dispatch.Outcome, t transform.Transform) bond.ResponseCurve {

	n := min(e.cfg.CurveScenarios, len(scenarios))
	grid := curveGrid(e.cfg.CurvePoints)
	curve := bond.ResponseCurve{Transform: t.Name(), Points: make([]bond.CurvePoint, 0, len(grid))}
	if n == 0 || len(grid) == 0 {
		return curve
	}

	tasks := sweepTasks(scenarios[:n], []transform.Transform{t}, grid)
	samples := runTasks(ctx, d, scenarios[:n], baselines[:n], tasks)

	for _, x := range grid {
		point := bond.CurvePoint{Intensity: x}
		var sum float64
		var flips int
		for _, smp := range samples {
			if smp.intensity != x || !smp.ok {
				continue
			}
			point.Samples++
			sum += smp.omega
			if smp.omega > 0 {
				flips++
			}
		}
		if point.Samples > 0 {
			point.MeanOmega = sum / float64(point.Samples)
			point.FlipRate = float64(flips) / float64(point.Samples)
		}
		curve.Points = append(curve.Points, point)
	}
	return curve
}
