package transform

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"bondfuzz/domain/scenario"
)

// Reorder applies round(intensity*n) seeded pairwise swaps (at least one, at most n-1).
// Swap p exchanges position p with a later position, so the front option always changes.
type Reorder struct{}

func (Reorder) Name() string            { return "reorder" }
func (Reorder) SemanticInvariant() bool { return true }

func (t Reorder) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		n := len(out.Options)
		if n < 2 {
			return
		}
		k := min(n-1, max(1, int(math.Round(i*float64(n)))))
		for p := 0; p < k; p++ {
			j := p + 1 + rng.IntN(n-p-1)
			out.Options[p], out.Options[j] = out.Options[j], out.Options[p]
		}
	})
}

// ReverseOrder reverses the leading ceil(intensity*n) options, never fewer than two
type ReverseOrder struct{}

func (ReverseOrder) Name() string            { return "reverse_order" }
func (ReverseOrder) SemanticInvariant() bool { return true }

func (t ReverseOrder) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, _ *rand.Rand) {
		n := len(out.Options)
		if n < 2 {
			return
		}
		m := min(n, max(2, int(math.Ceil(i*float64(n)-1e-9))))
		slices.Reverse(out.Options[:m])
	})
}

var idSchemes = []string{"opt_%d", "choice-%d", "alt%d", "item_%02d", "x%d"}

// RelabelIDs renames option identifiers. Below 0.5 one scheme is shared by every option;
// from 0.5 each option draws its own.
type RelabelIDs struct{}

func (RelabelIDs) Name() string            { return "relabel_ids" }
func (RelabelIDs) SemanticInvariant() bool { return true }

func (t RelabelIDs) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		shared := idSchemes[rng.IntN(len(idSchemes))]
		seen := make(map[string]struct{}, len(out.Options))
		for k := range out.Options {
			scheme := shared
			if i >= 0.5 {
				scheme = idSchemes[rng.IntN(len(idSchemes))]
			}
			id := fmt.Sprintf(scheme, k+1)
			for suffix := k; ; suffix++ {
				if _, dup := seen[id]; !dup {
					break
				}
				id = fmt.Sprintf(scheme+"_%d", k+1, suffix)
			}
			seen[id] = struct{}{}
			out.Options[k].ID = id
		}
	})
}

var contextKeys = []string{"weather", "reviewer", "ticket", "office", "shift", "document_version", "timezone", "channel"}

// ContextInjection adds ceil(4*intensity) irrelevant metadata entries
type ContextInjection struct{}

func (ContextInjection) Name() string            { return "context_injection" }
func (ContextInjection) SemanticInvariant() bool { return true }

func (t ContextInjection) Apply(s scenario.Scenario, intensity float64) scenario.Scenario {
	return perturb(s, t.Name(), intensity, func(out *scenario.Scenario, i float64, rng *rand.Rand) {
		k := max(1, int(math.Ceil(i*4)))
		keys := slices.Clone(contextKeys)
		rng.Shuffle(len(keys), func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })
		for _, key := range keys[:k] {
			out.Context[key] = fmt.Sprintf("v%d", rng.IntN(1000))
		}
	})
}
