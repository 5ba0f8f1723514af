package measure

import (
	"context"

	"bondfuzz/domain/omega"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/transform"
)

// task is one perturbed evaluation. Its identity (scenario, transform, intensity) fully
// determines the perturbed input, independent of when it is dispatched.
type task struct {
	scenario  int
	name      string
	intensity float64
	chain     bool
	invariant bool
	input     scenario.Scenario
}

type sample struct {
	scenario  int
	name      string
	intensity float64
	chain     bool
	invariant bool

	omega     float64
	ok        bool
	skipped   bool
	baseline  string
	perturbed string
}

func sweepTasks(scenarios []scenario.Scenario, transforms []transform.Transform, intensities []float64) []task {
	tasks := make([]task, 0, len(scenarios)*len(transforms)*len(intensities))
	for si, s := range scenarios {
		for _, t := range transforms {
			for _, x := range intensities {
				tasks = append(tasks, task{
					scenario:  si,
					name:      t.Name(),
					intensity: x,
					invariant: t.SemanticInvariant(),
					input:     t.Apply(s, x),
				})
			}
		}
	}
	return tasks
}

func chainTasks(scenarios []scenario.Scenario, chains []transform.Chain) []task {
	tasks := make([]task, 0, len(scenarios)*len(chains))
	for si, s := range scenarios {
		for _, c := range chains {
			tasks = append(tasks, task{
				scenario:  si,
				name:      c.Name,
				chain:     true,
				invariant: c.SemanticInvariant(),
				input:     c.Apply(s),
			})
		}
	}
	return tasks
}

// runTasks evaluates every task and scores it against its scenario's baseline. Samples come
// back in task order whatever the dispatch order was.
func runTasks(ctx context.Context, d *dispatch.Dispatcher, scenarios []scenario.Scenario,
	baselines []dispatch.Outcome, tasks []task) []sample {

	inputs := make([]scenario.Scenario, len(tasks))
	for i, t := range tasks {
		inputs[i] = t.input
	}
	outcomes := d.EvaluateAll(ctx, inputs)

	samples := make([]sample, len(tasks))
	for i, t := range tasks {
		base, out := baselines[t.scenario], outcomes[i]
		smp := sample{
			scenario:  t.scenario,
			name:      t.name,
			intensity: t.intensity,
			chain:     t.chain,
			invariant: t.invariant,
		}
		switch {
		case base.Skipped || out.Skipped:
			smp.skipped = true
		case base.OK() && out.OK():
			smp.ok = true
			smp.baseline = base.Result.Selection
			smp.perturbed = out.Result.Selection
			smp.omega = omega.Distance(smp.baseline, smp.perturbed, scenarios[t.scenario], t.input)
		}
		samples[i] = smp
	}
	return samples
}
