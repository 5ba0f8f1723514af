// Package generator builds stratified scenario corpora for measurement campaigns.
package generator

import (
	"fmt"
	"math/rand/v2"

	"bondfuzz/domain/scenario"
	"bondfuzz/ports"
)

// Region is a named rectangle of the harm/benefit unit square
type Region struct {
	Name       string
	HarmLow    float64
	HarmHigh   float64
	BenefitLow float64
	BenefitHi  float64
}

// Template gives a scenario family its description and label text
type Template struct {
	Name        string
	Description string
	LabelFormat string
}

// Regions spanning the unit square
var Regions = []Region{
	{"low-harm/high-benefit", 0.0, 0.3, 0.7, 1.0},
	{"high-harm/low-benefit", 0.7, 1.0, 0.0, 0.3},
	{"balanced", 0.35, 0.65, 0.35, 0.65},
	{"high-harm/high-benefit", 0.7, 1.0, 0.7, 1.0},
	{"low-harm/low-benefit", 0.0, 0.3, 0.0, 0.3},
}

// Templates are the domain flavours; label formats use only canonical paraphrase words
var Templates = []Template{
	{"resource_allocation", "Allocate a limited stock of resources across competing groups.", "give resource to the %s group"},
	{"medical_triage", "Decide which ward receives treatment capacity first.", "treat patient in the %s ward first"},
	{"infrastructure", "Choose which damaged bridge to repair with the available crew.", "repair the %s bridge"},
	{"public_policy", "Select which program receives the remaining budget.", "fund the %s program"},
}

var places = []string{"north", "south", "east", "west", "central"}

const (
	MinOptions = 2
	MaxOptions = 5

	// ViolationRate is the independent probability that an option breaks the hard constraint
	ViolationRate = 0.1
)

// Config controls corpus generation
type Config struct {
	N    int
	Seed int64
}

type cell struct {
	options  int
	region   Region
	template Template
}

// Generate produces cfg.N scenarios. The first cells walk the full coverage grid
// (template x region x option count); any remainder is drawn uniformly at random.
func Generate(cfg Config) ([]scenario.Scenario, error) {
	if cfg.N < 0 {
		return nil, fmt.Errorf("scenario count must be non-negative, got %d", cfg.N)
	}
	rng := ports.SeededStream("generator", cfg.Seed)

	grid := coverageGrid()
	out := make([]scenario.Scenario, 0, cfg.N)
	for i := 0; i < cfg.N && i < len(grid); i++ {
		out = append(out, generateOne(rng, i, grid[i]))
	}
	for len(out) < cfg.N {
		c := cell{
			options:  MinOptions + rng.IntN(MaxOptions-MinOptions+1),
			region:   Regions[rng.IntN(len(Regions))],
			template: Templates[rng.IntN(len(Templates))],
		}
		out = append(out, generateOne(rng, len(out), c))
	}
	return out, nil
}

func coverageGrid() []cell {
	var grid []cell
	for _, t := range Templates {
		for _, r := range Regions {
			for n := MinOptions; n <= MaxOptions; n++ {
				grid = append(grid, cell{options: n, region: r, template: t})
			}
		}
	}
	return grid
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func generateOne(rng *rand.Rand, index int, c cell) scenario.Scenario {
	r := c.region
	opts := make([]scenario.Option, c.options)
	for k := range opts {
		opts[k] = scenario.Option{
			ID:                 fmt.Sprintf("o%d", k+1),
			Label:              fmt.Sprintf(c.template.LabelFormat, places[k]),
			Harm:               uniform(rng, r.HarmLow, r.HarmHigh),
			Benefit:            uniform(rng, r.BenefitLow, r.BenefitHi),
			Urgency:            rng.Float64(),
			ViolatesConstraint: rng.Float64() < ViolationRate,
		}
	}

	// one option clearly dominates the region, another is clearly dominated
	dominant := rng.IntN(c.options)
	dominated := (dominant + 1 + rng.IntN(c.options-1)) % c.options
	opts[dominant].Harm = r.HarmLow * 0.5
	opts[dominant].Benefit = r.BenefitHi + (1-r.BenefitHi)*0.5
	opts[dominated].Harm = r.HarmHigh + (1-r.HarmHigh)*0.5
	opts[dominated].Benefit = r.BenefitLow * 0.5

	allViolate := true
	for _, o := range opts {
		allViolate = allViolate && o.ViolatesConstraint
	}
	if allViolate {
		opts[rng.IntN(c.options)].ViolatesConstraint = false
	}

	s := scenario.New(fmt.Sprintf("scn-%04d", index), c.template.Description, opts...)
	s.Context["domain"] = c.template.Name
	s.Context["region"] = r.Name
	return s
}
