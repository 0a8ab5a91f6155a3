// Package rng provides the seeded random source consumed by the simulation core.
package rng

import "math/rand"

// Source is the random interface the core consumes. Every draw happens in a
// fixed order inside a step, so equal seeds give equal trajectories.
type Source interface {
	// Next returns a value in [0, 1).
	Next() float64
	// Range returns a value in [lo, hi).
	Range(lo, hi float64) float64
	// Int returns an integer in [lo, hi). Returns lo when hi <= lo.
	Int(lo, hi int) int
}

// Rand is the default Source backed by math/rand.
type Rand struct {
	seed int64
	r    *rand.Rand
}

// New creates a Source seeded with seed.
func New(seed int64) *Rand {
	return &Rand{seed: seed, r: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the source was created with.
func (r *Rand) Seed() int64 { return r.seed }

// Next returns a value in [0, 1).
func (r *Rand) Next() float64 { return r.r.Float64() }

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + r.r.Float64()*(hi-lo)
}

// Int returns an integer in [lo, hi).
func (r *Rand) Int(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.r.Intn(hi-lo)
}
