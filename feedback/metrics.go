// Package feedback implements the closed-loop controller that measures
// emergent population statistics and produces bounded, transient modulation
// of the force and mutation parameters.
package feedback

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/emergent/components"
)

// Metrics are the six emergent statistics, each normalized to [0, 1].
type Metrics struct {
	Entropy    float64 `json:"entropy" csv:"entropy"`       // spatial Shannon entropy of types over a coarse grid
	Clustering float64 `json:"clustering" csv:"clustering"` // dispersion of per-cell type occupancy
	Conflict   float64 `json:"conflict" csv:"conflict"`     // share of fast particles
	Diversity  float64 `json:"diversity" csv:"diversity"`   // share of types above a minimum population share
	Stagnation float64 `json:"stagnation" csv:"stagnation"` // similarity of the recent and older windows
	Energy     float64 `json:"energy" csv:"energy"`         // mean speed over max speed
}

// vector returns the metrics that stagnation compares across windows.
func (m Metrics) vector() [4]float64 {
	return [4]float64{m.Entropy, m.Clustering, m.Conflict, m.Energy}
}

// Sampler computes Metrics from a stride-sampled subset of the population.
// It never draws from the random source, so sampling does not perturb the
// simulation's random stream. Buffers are reused across calls.
type Sampler struct {
	SampleSize   int
	CoarseGrid   int
	SpeedFrac    float64 // fraction of max speed counted as conflict
	MinTypeShare float64

	occupancy []float64 // cell-major, types per cell
	typeCount []float64
	cellDist  []float64
}

// Measure returns every metric except Stagnation, which needs history.
// Food and invalid-type slots are ignored.
func (s *Sampler) Measure(ps *components.ParticleSet, types int, width, height, maxSpeed float32) Metrics {
	var m Metrics
	if ps == nil || ps.Count == 0 || types < 1 || !(width > 0) || !(height > 0) {
		return m
	}
	g := s.CoarseGrid
	if g < 1 {
		g = 1
	}
	cells := g * g
	s.occupancy = resize(s.occupancy, cells*types)
	s.typeCount = resize(s.typeCount, types)
	s.cellDist = resize(s.cellDist, types)

	stride := 1
	if s.SampleSize > 0 && ps.Count > s.SampleSize {
		stride = (ps.Count + s.SampleSize - 1) / s.SampleSize
	}

	fastSpeed := s.SpeedFrac * float64(maxSpeed)
	var sampled, fast int
	var speedSum float64
	for i := 0; i < ps.Count; i += stride {
		if !ps.ValidType(i, types) {
			continue
		}
		t := int(ps.Type[i])
		cx := coarseIndex(ps.X[i], width, g)
		cy := coarseIndex(ps.Y[i], height, g)
		s.occupancy[(cy*g+cx)*types+t]++
		s.typeCount[t]++

		speed := math.Hypot(float64(ps.VX[i]), float64(ps.VY[i]))
		speedSum += speed
		if speed > fastSpeed {
			fast++
		}
		sampled++
	}
	if sampled == 0 {
		return m
	}
	n := float64(sampled)

	m.Entropy = s.spatialEntropy(types, cells, n)
	m.Clustering = dispersion(s.occupancy)
	m.Conflict = float64(fast) / n
	if maxSpeed > 0 {
		m.Energy = clamp01(speedSum / n / float64(maxSpeed))
	}

	var present int
	for _, c := range s.typeCount {
		if c/n >= s.MinTypeShare && c > 0 {
			present++
		}
	}
	m.Diversity = float64(present) / float64(types)
	return m
}

// spatialEntropy is the occupancy-weighted mean of each cell's type entropy,
// normalized by the maximum entropy for the type count.
func (s *Sampler) spatialEntropy(types, cells int, total float64) float64 {
	if types < 2 {
		return 0
	}
	maxH := math.Log(float64(types))
	var h float64
	for c := 0; c < cells; c++ {
		row := s.occupancy[c*types : (c+1)*types]
		count := floats.Sum(row)
		if count == 0 {
			continue
		}
		// Divide per type so a single-type cell has share exactly 1
		for t, c := range row {
			s.cellDist[t] = c / count
		}
		h += count / total * stat.Entropy(s.cellDist)
	}
	return clamp01(h / maxH)
}

// dispersion maps the squared coefficient of variation of counts to [0, 1).
func dispersion(counts []float64) float64 {
	mean, variance := stat.PopMeanVariance(counts, nil)
	if mean <= 0 {
		return 0
	}
	cv2 := variance / (mean * mean)
	return cv2 / (1 + cv2)
}

// Stagnation compares the mean metric vector of the most recent window
// against the window just before it. Identical windows give 1. Returns 0
// until the history holds two full windows.
func Stagnation(h *History, window int) float64 {
	if window < 1 || h.Len() < 2*window {
		return 0
	}
	var recent, older [4]float64
	n := h.Len()
	for k := 0; k < window; k++ {
		r := h.At(n - 1 - k).vector()
		o := h.At(n - 1 - window - k).vector()
		for j := range recent {
			recent[j] += r[j]
			older[j] += o[j]
		}
	}
	floats.Scale(1/float64(window), recent[:])
	floats.Scale(1/float64(window), older[:])
	d := floats.Distance(recent[:], older[:], 1)
	return 1 / (1 + 20*d)
}

func coarseIndex(v, size float32, g int) int {
	i := int(float64(v) / float64(size) * float64(g))
	if i < 0 {
		return 0
	}
	if i >= g {
		return g - 1
	}
	return i
}

func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	clear(s)
	return s
}

func clamp01(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
