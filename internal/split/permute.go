package split

import (
	"math/rand/v2"
	"slices"
)

// DefaultSeed is the seed used for the canonical name permutation and the
// stratified shuffles.
const DefaultSeed uint64 = 0

// NewRand returns a deterministic source for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// Permute returns the names sorted and then shuffled with seed.
// The input slice is not modified. For a fixed name set and seed the result
// is identical on every run and platform.
func Permute(names []string, seed uint64) []string {
	out := slices.Clone(names)
	slices.Sort(out)

	rng := NewRand(seed)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
