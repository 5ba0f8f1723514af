package measure

import (
	"sort"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/transform"
)

// meansBy averages Ω per sample name over the usable samples selected by keep
func meansBy(samples []sample, keep func(sample) bool) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, smp := range samples {
		if !smp.ok || !keep(smp) {
			continue
		}
		sums[smp.name] += smp.omega
		counts[smp.name]++
	}
	means := make(map[string]float64, len(sums))
	for name, sum := range sums {
		means[name] = sum / float64(counts[name])
	}
	return means
}

// mostSensitive picks the invariant transform with the highest mean Ω; ties go to the
// earlier catalog entry
func mostSensitive(invariant []transform.Transform, means map[string]float64) transform.Transform {
	if len(invariant) == 0 {
		return nil
	}
	best := invariant[0]
	for _, t := range invariant[1:] {
		if means[t.Name()] > means[best.Name()] {
			best = t
		}
	}
	return best
}

// pool returns the Ω values of usable invariant samples in task order
func pool(groups ...[]sample) []float64 {
	var omegas []float64
	for _, samples := range groups {
		for _, smp := range samples {
			if smp.ok && smp.invariant {
				omegas = append(omegas, smp.omega)
			}
		}
	}
	return omegas
}

type tally struct {
	total, errors, failures, pooled int
}

func count(threshold float64, groups ...[]sample) tally {
	var t tally
	for _, samples := range groups {
		for _, smp := range samples {
			if smp.skipped {
				continue
			}
			t.total++
			if !smp.ok {
				t.errors++
				continue
			}
			if !smp.invariant {
				continue
			}
			t.pooled++
			if smp.omega > threshold {
				t.failures++
			}
		}
	}
	return t
}

// worst returns the n largest invariant deviations. The sort is stable over task order,
// so equal Ω values always come out in the same sequence.
func worst(scenarios []scenario.Scenario, n int, groups ...[]sample) []bond.Deviation {
	var candidates []sample
	for _, samples := range groups {
		for _, smp := range samples {
			if smp.ok && smp.invariant && smp.omega > 0 {
				candidates = append(candidates, smp)
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].omega > candidates[j].omega
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]bond.Deviation, 0, len(candidates))
	for _, smp := range candidates {
		out = append(out, deviation(scenarios, smp))
	}
	return out
}

func deviation(scenarios []scenario.Scenario, smp sample) bond.Deviation {
	return bond.Deviation{
		ScenarioID:         scenarios[smp.scenario].ID,
		Transform:          smp.name,
		Intensity:          smp.intensity,
		Chain:              smp.chain,
		BaselineSelection:  smp.baseline,
		PerturbedSelection: smp.perturbed,
		Omega:              smp.omega,
	}
}

func rate(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
