package measure

import (
	"fmt"
	"time"

	"bondfuzz/internal/transform"
)

// Config controls a measurement campaign
type Config struct {
	// Intensities is the single-sweep grid
	Intensities []float64
	Chains      transform.ChainConfig

	// intensity-response curve on the most sensitive invariant transform
	CurvePoints    int
	CurveScenarios int

	// binary search for the smallest flipping intensity
	AdversarialScenarios int
	AdversarialTolerance float64

	// Ω above FailureThreshold is reported as a failure
	FailureThreshold float64
	WorstDeviations  int

	// Deadline bounds the whole campaign; zero means none. On expiry the result is partial.
	Deadline time.Duration
}

// DefaultConfig returns the standard campaign settings
func DefaultConfig() Config {
	return Config{
		Intensities:          []float64{0.2, 0.4, 0.6, 0.8, 1.0},
		Chains:               transform.DefaultChainConfig(),
		CurvePoints:          11,
		CurveScenarios:       20,
		AdversarialScenarios: 10,
		AdversarialTolerance: 0.05,
		FailureThreshold:     0.5,
		WorstDeviations:      10,
	}
}

// Validate rejects configurations that cannot produce a meaningful measurement
func (c Config) Validate() error {
	if len(c.Intensities) == 0 {
		return fmt.Errorf("intensity grid is empty")
	}
	for _, i := range c.Intensities {
		if i <= 0 || i > 1 {
			return fmt.Errorf("intensity %v outside (0,1]", i)
		}
	}
	if c.CurvePoints == 1 {
		return fmt.Errorf("curve needs at least 2 points, got 1")
	}
	if c.AdversarialTolerance <= 0 || c.AdversarialTolerance >= 1 {
		return fmt.Errorf("adversarial tolerance %v outside (0,1)", c.AdversarialTolerance)
	}
	if c.FailureThreshold < 0 || c.FailureThreshold > 1 {
		return fmt.Errorf("failure threshold %v outside [0,1]", c.FailureThreshold)
	}
	if c.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative")
	}
	return nil
}

func (c Config) hasMaxIntensity() bool {
	for _, i := range c.Intensities {
		if i == 1.0 {
			return true
		}
	}
	return false
}
