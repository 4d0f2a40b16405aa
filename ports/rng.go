package ports

import (
	"math/rand"
)

// RNG provides seeded random number generation for deterministic operations.
// Every consumer owns its stream exclusively; no ambient process-wide RNG
// state survives between grid cells.
type RNG interface {
	// Stream returns a generator for a named operation. The same name and
	// seed always yield an identical stream.
	Stream(name string, seed int64) *rand.Rand

	// DrawSeed derives the seed for one Monte Carlo draw from a base seed and
	// the draw index. The derivation is stateless so draws are restartable
	// and independent of prior draws.
	DrawSeed(base int64, drawIndex int) int64
}
