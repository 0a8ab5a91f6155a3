// Package matrix holds the per-type interaction tables and their structural transforms.
package matrix

import (
	"fmt"
	"math"

	"github.com/pthm-cable/emergent/rng"
)

// Matrix holds three NxN tables indexed by (typeA, typeB).
// Attract is always derived from Base plus the optional circular overlay,
// so transforms edit Base and the overlay never accumulates.
type Matrix struct {
	N        int         `json:"n"`
	Attract  [][]float32 `json:"attract"`
	Radius   [][]float32 `json:"radius"`
	Falloff  [][]float32 `json:"falloff"`
	Base     [][]float32 `json:"base"`
	Circular float32     `json:"circular"` // overlay strength, 0 = off

	DefaultRadius  float32 `json:"default_radius"`
	DefaultFalloff float32 `json:"default_falloff"`
}

// New creates an n-type matrix with zero attraction and default radius/falloff.
func New(n int, radius, falloff float32) *Matrix {
	if n < 1 {
		n = 1
	}
	m := &Matrix{
		N:              n,
		DefaultRadius:  radius,
		DefaultFalloff: falloff,
	}
	m.Base = square(n, 0)
	m.Radius = square(n, radius)
	m.Falloff = square(n, falloff)
	m.Attract = square(n, 0)
	return m
}

func square(n int, fill float32) [][]float32 {
	t := make([][]float32, n)
	for i := range t {
		t[i] = make([]float32, n)
		if fill != 0 {
			for j := range t[i] {
				t[i][j] = fill
			}
		}
	}
	return t
}

// derive recomputes Attract from Base and the circular overlay.
func (m *Matrix) derive() {
	for i := 0; i < m.N; i++ {
		copy(m.Attract[i], m.Base[i])
	}
	if m.Circular != 0 && m.N > 1 {
		for i := 0; i < m.N; i++ {
			next := (i + 1) % m.N
			m.Attract[i][next] += m.Circular
			m.Attract[next][i] -= m.Circular
		}
	}
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			m.Attract[i][j] = clamp(m.Attract[i][j], -1, 1)
		}
	}
}

// Set writes a base attraction coefficient. Out-of-range indices are ignored.
func (m *Matrix) Set(i, j int, a float32) {
	if !m.inRange(i, j) {
		return
	}
	m.Base[i][j] = clamp(a, -1, 1)
	m.derive()
}

// SetRadius writes an interaction radius. Out-of-range indices are ignored.
func (m *Matrix) SetRadius(i, j int, r float32) {
	if !m.inRange(i, j) {
		return
	}
	m.Radius[i][j] = r
}

func (m *Matrix) inRange(i, j int) bool {
	return i >= 0 && j >= 0 && i < m.N && j < m.N
}

// At returns the coefficients for (i, j). ok is false when the pair has no
// usable interaction: indices out of range, a non-positive radius, or a
// non-finite entry. Callers treat !ok as zero interaction.
func (m *Matrix) At(i, j int) (attract, radius, falloff float32, ok bool) {
	if !m.inRange(i, j) || i >= len(m.Attract) || j >= len(m.Attract[i]) {
		return 0, 0, 0, false
	}
	attract, radius, falloff = m.Attract[i][j], m.Radius[i][j], m.Falloff[i][j]
	if radius <= 0 || !finite(attract) || !finite(radius) || !finite(falloff) {
		return 0, 0, 0, false
	}
	return attract, radius, falloff, true
}

// MaxRadius returns the largest radius in use.
func (m *Matrix) MaxRadius() float32 {
	var r float32
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if v := m.Radius[i][j]; finite(v) && v > r {
				r = v
			}
		}
	}
	return r
}

// Randomize fills the base attraction table uniformly in [-1, 1].
func (m *Matrix) Randomize(r rng.Source) {
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			m.Base[i][j] = float32(r.Range(-1, 1))
		}
	}
	m.derive()
}

// Soften scales every base coefficient by factor (0 < factor < 1 shrinks magnitudes).
func (m *Matrix) Soften(factor float32) {
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			m.Base[i][j] = clamp(m.Base[i][j]*factor, -1, 1)
		}
	}
	m.derive()
}

// Symmetrize averages each pair so M[i][j] == M[j][i] for all three tables.
// The circular ring is antisymmetric, so it is folded into Base and cleared
// first; Attract is symmetric afterwards.
func (m *Matrix) Symmetrize() {
	m.bakeCircular()
	for i := 0; i < m.N; i++ {
		for j := i + 1; j < m.N; j++ {
			a := (m.Base[i][j] + m.Base[j][i]) / 2
			m.Base[i][j], m.Base[j][i] = a, a
			r := (m.Radius[i][j] + m.Radius[j][i]) / 2
			m.Radius[i][j], m.Radius[j][i] = r, r
			f := (m.Falloff[i][j] + m.Falloff[j][i]) / 2
			m.Falloff[i][j], m.Falloff[j][i] = f, f
		}
	}
	m.derive()
}

// Invert negates every effective coefficient. Like Symmetrize it folds the
// circular ring into Base and clears it, so Attract becomes exactly the
// negation of its previous value.
func (m *Matrix) Invert() {
	m.bakeCircular()
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			m.Base[i][j] = -m.Base[i][j]
		}
	}
	m.derive()
}

// bakeCircular copies the derived table into Base and drops the overlay.
func (m *Matrix) bakeCircular() {
	if m.Circular == 0 {
		return
	}
	for i := 0; i < m.N; i++ {
		copy(m.Base[i], m.Attract[i])
	}
	m.Circular = 0
}

// Normalize rescales the base table so its largest magnitude is 1.
// An all-zero table is left unchanged.
func (m *Matrix) Normalize() {
	var peak float32
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if a := abs(m.Base[i][j]); a > peak {
				peak = a
			}
		}
	}
	if peak == 0 {
		return
	}
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			m.Base[i][j] /= peak
		}
	}
	m.derive()
}

// Resize changes the type count, keeping the overlapping sub-block.
// New cells get the default radius and falloff; their attraction is random
// when r is non-nil and zero otherwise.
func (m *Matrix) Resize(n int, r rng.Source) {
	if n < 1 || n == m.N {
		return
	}
	base := square(n, 0)
	radius := square(n, m.DefaultRadius)
	falloff := square(n, m.DefaultFalloff)
	keep := min(n, m.N)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i < keep && j < keep {
				base[i][j] = m.Base[i][j]
				radius[i][j] = m.Radius[i][j]
				falloff[i][j] = m.Falloff[i][j]
			} else if r != nil {
				base[i][j] = float32(r.Range(-1, 1))
			}
		}
	}
	m.N = n
	m.Base, m.Radius, m.Falloff = base, radius, falloff
	m.Attract = square(n, 0)
	m.derive()
}

// SetCircular sets the cyclic attraction ring strength on top of Base.
// Type i is pulled toward i+1 and pushed away from i-1. Zero removes it.
func (m *Matrix) SetCircular(strength float32) {
	m.Circular = clamp(strength, -1, 1)
	m.derive()
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := New(m.N, m.DefaultRadius, m.DefaultFalloff)
	for i := 0; i < m.N; i++ {
		copy(c.Base[i], m.Base[i])
		copy(c.Radius[i], m.Radius[i])
		copy(c.Falloff[i], m.Falloff[i])
	}
	c.Circular = m.Circular
	c.derive()
	return c
}

// Validate checks that every table is N×N. Used when restoring external state.
func (m *Matrix) Validate() error {
	tables := map[string][][]float32{
		"attract": m.Attract, "radius": m.Radius, "falloff": m.Falloff, "base": m.Base,
	}
	for name, t := range tables {
		if len(t) != m.N {
			return fmt.Errorf("matrix %s has %d rows, want %d", name, len(t), m.N)
		}
		for i, row := range t {
			if len(row) != m.N {
				return fmt.Errorf("matrix %s row %d has %d columns, want %d", name, i, len(row), m.N)
			}
		}
	}
	return nil
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func finite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}
