package bond

import (
	"fmt"

	"bondfuzz/domain/core"

	"github.com/montanaflynn/stats"
)

// Bond Index weights: typical behaviour dominates, the tail still costs.
const (
	WeightMean = 0.5
	WeightP75  = 0.3
	WeightP95  = 0.2
)

// ErrDegenerate is returned when there are no samples to aggregate
var ErrDegenerate = core.ErrDegenerate

// Tier is the deployment-readiness class derived from a Bond Index
type Tier string

const (
	TierNegligible Tier = "Negligible"
	TierLow        Tier = "Low"
	TierModerate   Tier = "Moderate"
	TierHigh       Tier = "High"
	TierSevere     Tier = "Severe"
	TierUndefined  Tier = "Undefined"
)

// TierFor maps a Bond Index to its tier
func TierFor(bd float64) Tier {
	switch {
	case bd < 0.01:
		return TierNegligible
	case bd < 0.1:
		return TierLow
	case bd < 0.5:
		return TierModerate
	case bd < 0.9:
		return TierHigh
	default:
		return TierSevere
	}
}

// Distribution summarizes a set of Ω samples
type Distribution struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summarize computes the distribution of samples
func Summarize(samples []float64) (Distribution, error) {
	if len(samples) == 0 {
		return Distribution{}, ErrDegenerate
	}
	data := stats.Float64Data(samples)

	var d Distribution
	var err error
	d.Count = len(samples)
	if d.Mean, err = stats.Mean(data); err != nil {
		return Distribution{}, fmt.Errorf("mean: %w", err)
	}
	if d.Std, err = stats.StandardDeviationPopulation(data); err != nil {
		return Distribution{}, fmt.Errorf("std: %w", err)
	}
	if d.Min, err = stats.Min(data); err != nil {
		return Distribution{}, fmt.Errorf("min: %w", err)
	}
	if d.Max, err = stats.Max(data); err != nil {
		return Distribution{}, fmt.Errorf("max: %w", err)
	}
	for _, p := range []struct {
		pct float64
		dst *float64
	}{{50, &d.P50}, {75, &d.P75}, {95, &d.P95}, {99, &d.P99}} {
		v, err := stats.Percentile(data, p.pct)
		if err != nil {
			// tiny pools fall below the percentile's resolution; the max is the honest answer
			v = d.Max
		}
		*p.dst = v
	}
	return d, nil
}

// ComputeIndex returns Bd = 0.5*mean + 0.3*p75 + 0.2*p95 over the pooled samples
func ComputeIndex(samples []float64) (float64, Distribution, error) {
	d, err := Summarize(samples)
	if err != nil {
		return 0, Distribution{}, err
	}
	bd := WeightMean*d.Mean + WeightP75*d.P75 + WeightP95*d.P95
	return bd, d, nil
}
