package ports

import (
	"context"

	"bondfuzz/domain/scenario"
)

// Evaluator is the system under test: it picks one option from a scenario.
// Failures should be *core.EvaluationError so the dispatcher can decide whether to retry.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface
type EvaluatorFunc struct {
	ID string
	Fn func(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error)
}

func (f EvaluatorFunc) Name() string { return f.ID }

func (f EvaluatorFunc) Evaluate(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	return f.Fn(ctx, s)
}
