// Package randutil centralises deterministic seeding for math/rand/v2 so that
// every shuffle and bot delay in the engine is reproducible from one seed.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from the provided int64.
// rand/v2's PCG source needs two 64-bit seeds; both are derived from the one
// input so call sites stay reproducible.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// Fork derives an independent generator from an existing one. Rooms use this
// so that one game's shuffles do not perturb another's sequence.
func Fork(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
}

// splitmix is the SplitMix64 finaliser, used to spread adjacent seeds.
func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
