package calibration

import (
	"context"
	"fmt"
	"strings"

	"bondfuzz/domain/bond"
	"bondfuzz/domain/scenario"
	"bondfuzz/internal"
	apperrors "bondfuzz/internal/errors"
	"bondfuzz/internal/measure"
	"bondfuzz/ports"
)

// Reference pairs an evaluator with the Bond Index range it must land in
type Reference struct {
	Evaluator ports.Evaluator
	Expected  bond.Range
}

// References returns the five reference evaluators from most to least consistent
func References() []Reference {
	return []Reference{
		{Evaluator: Ideal{}, Expected: bond.Range{Min: 0, Max: 0.05}},
		{Evaluator: NearIdeal{}, Expected: bond.Range{Min: 0, Max: 0.05}},
		{Evaluator: OrderSensitive{}, Expected: bond.Range{Min: 0.10, Max: 0.35}},
		{Evaluator: SurfaceFeature{}, Expected: bond.Range{Min: 0.20, Max: 0.50}},
		{Evaluator: Chaotic{}, Expected: bond.Range{Min: 0.55, Max: 1.0}},
	}
}

// Lookup finds a reference evaluator by name
func Lookup(name string) (Reference, bool) {
	for _, ref := range References() {
		if ref.Evaluator.Name() == name {
			return ref, true
		}
	}
	return Reference{}, false
}

// Check is one pass/fail assertion about a calibration run
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Report is the outcome of a calibration run
type Report struct {
	Results []*bond.MeasurementResult `json:"results"`
	Checks  []Check                   `json:"checks"`
	Passed  bool                      `json:"passed"`
}

// Err returns a CALIBRATION_FAILED error naming the failed checks, or nil
func (r *Report) Err() error {
	if r.Passed {
		return nil
	}
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return apperrors.CalibrationFailed("failed checks: " + strings.Join(failed, ", "))
}

// Harness measures every reference evaluator with the same engine and corpus
type Harness struct {
	engine     *measure.Engine
	references []Reference
	logger     *internal.Logger
}

// NewHarness builds a harness over the standard references
func NewHarness(engine *measure.Engine, logger *internal.Logger) *Harness {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Harness{engine: engine, references: References(), logger: logger}
}

// Run measures the references in order and checks ranges and ordering. Measurement
// errors abort the run; an out-of-range index only fails its check.
func (h *Harness) Run(ctx context.Context, corpus []scenario.Scenario) (*Report, error) {
	report := &Report{Passed: true}
	for _, ref := range h.references {
		res, err := h.engine.Measure(ctx, ref.Evaluator, corpus)
		if err != nil {
			return nil, fmt.Errorf("measure %s: %w", ref.Evaluator.Name(), err)
		}
		expected := ref.Expected
		res.ExpectedRange = &expected
		report.Results = append(report.Results, res)

		check := Check{Name: "range:" + ref.Evaluator.Name(), Passed: res.InExpectedRange()}
		if bd, ok := res.Index(); ok {
			check.Detail = fmt.Sprintf("bd=%.4f expected [%.2f, %.2f]", bd, expected.Min, expected.Max)
		} else {
			check.Detail = "bond index undefined"
		}
		report.add(check)
		h.logger.Info("calibration %s: %s", check.Name, check.Detail)
	}
	report.add(ordering(report.Results))
	return report, nil
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// ordering checks the indices never decrease from one reference to the next
func ordering(results []*bond.MeasurementResult) Check {
	check := Check{Name: "ordering", Passed: true, Detail: "monotone non-decreasing"}
	for i := 1; i < len(results); i++ {
		prev, okPrev := results[i-1].Index()
		cur, okCur := results[i].Index()
		if !okPrev || !okCur {
			check.Passed = false
			check.Detail = "undefined index in sequence"
			return check
		}
		if cur < prev {
			check.Passed = false
			check.Detail = fmt.Sprintf("%s (%.4f) below %s (%.4f)",
				results[i].Evaluator, cur, results[i-1].Evaluator, prev)
			return check
		}
	}
	return check
}
