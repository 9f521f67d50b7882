package testutil

import (
	"math/rand/v2"
	"sync"
)

// RNG is a seeded, goroutine-safe source of test vectors.
type RNG struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRNG returns a generator whose output depends only on seed.
func NewRNG(seed int64) *RNG {
	return &RNG{src: rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))}
}

// UniformVectors returns num feature vectors of length dim with components
// in [0, 1), all sharing one backing array.
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	flat := make([]float32, num*dim)
	for i := range flat {
		flat[i] = r.src.Float32()
	}
	out := make([][]float32, num)
	for i := range out {
		out[i] = flat[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return out
}

// Labels returns n consecutive labels starting at from.
func Labels(from int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = from + int64(i)
	}
	return out
}
