package rng

import (
	"hash/fnv"
	"math/rand"
)

// Deterministic implements ports.RNG with stateless seed derivation, so Monte
// Carlo draws are restartable and independent of prior draws' state.
type Deterministic struct{}

// New returns the default deterministic RNG source.
func New() *Deterministic { return &Deterministic{} }

// Stream returns a generator whose sequence depends only on the operation
// name and the seed.
func (d *Deterministic) Stream(name string, seed int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	mixed := splitmix64(uint64(seed) ^ h.Sum64())
	return rand.New(rand.NewSource(int64(mixed)))
}

// DrawSeed derives the per-draw seed from the base seed and the draw index.
// Rerunning with the same base seed and sample count reproduces identical
// draws bit-for-bit.
func (d *Deterministic) DrawSeed(base int64, drawIndex int) int64 {
	return int64(splitmix64(uint64(base) + uint64(drawIndex+1)*0x9E3779B97F4A7C15))
}

// splitmix64 is the finalizer from the SplitMix64 generator; it decorrelates
// adjacent inputs so consecutive draw indices yield unrelated streams.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
