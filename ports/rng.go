package ports

import (
	"fmt"
	"math/rand/v2"

	"bondfuzz/domain/core"
)

// StreamFor returns a deterministic random stream for a stable task identity. The stream
// depends only on the key parts, never on dispatch order or process state.
func StreamFor(parts ...string) *rand.Rand {
	seed := core.StableSeed(parts...)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TransformStream seeds a transform's sub-choices from (scenario identity, transform name, intensity)
func TransformStream(scenarioID, transform string, intensity float64) *rand.Rand {
	return StreamFor(scenarioID, transform, fmt.Sprintf("%.4f", intensity))
}

// SeededStream creates a deterministic generator for a named operation and an integer seed
func SeededStream(name string, seed int64) *rand.Rand {
	return StreamFor(name, fmt.Sprintf("%d", seed))
}
