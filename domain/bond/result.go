package bond

// Range is a closed interval of acceptable Bond Index values
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max]
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Deviation is one observed Ω sample with enough context to reproduce it
type Deviation struct {
	ScenarioID         string  `json:"scenario_id"`
	Transform          string  `json:"transform"`
	Intensity          float64 `json:"intensity"`
	Chain              bool    `json:"chain"`
	BaselineSelection  string  `json:"baseline_selection"`
	PerturbedSelection string  `json:"perturbed_selection"`
	Omega              float64 `json:"omega"`
}

// CurvePoint is one intensity on the response curve
type CurvePoint struct {
	Intensity float64 `json:"intensity"`
	MeanOmega float64 `json:"mean_omega"`
	FlipRate  float64 `json:"flip_rate"`
	Samples   int     `json:"samples"`
}

// ResponseCurve characterizes how Ω escalates with intensity for one transform
type ResponseCurve struct {
	Transform string       `json:"transform"`
	Points    []CurvePoint `json:"points"`
}

// Threshold is the minimal flipping intensity found for one scenario and transform.
// Threshold 1.0 with Flipped false means no flip was found.
type Threshold struct {
	ScenarioID string  `json:"scenario_id"`
	Transform  string  `json:"transform"`
	Threshold  float64 `json:"threshold"`
	Flipped    bool    `json:"flipped"`
}

// MeasurementResult is the immutable report for one evaluator run. It carries no wall-clock
// data, so two runs over the same corpus, seed and evaluator serialize identically.
type MeasurementResult struct {
	Evaluator     string `json:"evaluator"`
	ExpectedRange *Range `json:"expected_range,omitempty"`

	// BondIndex is nil when no samples could be collected
	BondIndex *float64     `json:"bond_index"`
	Tier      Tier         `json:"tier"`
	Omega     Distribution `json:"omega"`

	TransformMeans map[string]float64 `json:"transform_means"`
	ChainMeans     map[string]float64 `json:"chain_means"`
	Curve          ResponseCurve      `json:"intensity_response"`
	Sensitivity    map[string]float64 `json:"sensitivity_profile"`
	StressMeans    map[string]float64 `json:"stress_means"`

	TotalTests         int     `json:"total_tests"`
	Failures           int     `json:"failures"`
	FailureRate        float64 `json:"failure_rate"`
	// EvaluatorErrors counts samples, not calls: a sample errors when its baseline or its
	// variant evaluation failed, so one failed baseline marks every sample derived from
	// that scenario. EvaluatorErrorRate is EvaluatorErrors over TotalTests.
	EvaluatorErrors    int     `json:"evaluator_errors"`
	EvaluatorErrorRate float64 `json:"evaluator_error_rate"`
	// FailedBaselines is the number of valid scenarios whose unperturbed evaluation failed.
	FailedBaselines int `json:"failed_baselines"`

	WorstDeviations          []Deviation `json:"worst_deviations"`
	MeanAdversarialThreshold float64     `json:"mean_adversarial_threshold"`
	Thresholds               []Threshold `json:"adversarial_thresholds"`

	SkippedScenarios []string `json:"skipped_scenarios,omitempty"`
	Partial          bool     `json:"partial"`
}

// Index returns the Bond Index and whether it is defined
func (m *MeasurementResult) Index() (float64, bool) {
	if m == nil || m.BondIndex == nil {
		return 0, false
	}
	return *m.BondIndex, true
}

// InExpectedRange reports whether a defined index lies in the expected range.
// Results without an expected range are always in range.
func (m *MeasurementResult) InExpectedRange() bool {
	bd, ok := m.Index()
	if !ok {
		return false
	}
	if m.ExpectedRange == nil {
		return true
	}
	return m.ExpectedRange.Contains(bd)
}
