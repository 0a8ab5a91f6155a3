package systems

import (
	"math"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/rng"
)

// EnergyResult counts the population changes of one step.
type EnergyResult struct {
	Births    int
	Deaths    int
	Refused   int // reproductions refused because the set was full
	FoodEaten int
	FoodSpawn int
}

// EnergySystem applies feeding, metabolism, reproduction and death.
// It carries the fractional food spawn accumulator between steps.
type EnergySystem struct {
	foodAccum float32
}

// NewEnergySystem creates an energy system.
func NewEnergySystem() *EnergySystem {
	return &EnergySystem{}
}

// Reset clears the food spawn accumulator.
func (s *EnergySystem) Reset() { s.foodAccum = 0 }

// Step runs one energy update. feed is the kernel's per-slot accumulator.
// Children are appended, dead slots compacted, so slot indices are not
// stable across this call.
func (s *EnergySystem) Step(ps *components.ParticleSet, feed []float32, env *field.Environment, r rng.Source, p EnergyParams, dt float32) EnergyResult {
	var res EnergyResult
	if !p.Enabled || ps == nil || !(dt > 0) {
		return res
	}

	n := ps.Count
	for i := 0; i < n; i++ {
		if ps.IsFood(i) {
			continue
		}
		var f float32
		if i < len(feed) {
			f = feed[i]
		}
		if f > 0 {
			nutrient := env.Read(ps.X[i], ps.Y[i]).Nutrient
			ps.Energy[i] += f * p.FeedRate * (0.5 + nutrient) * dt
		}
		ps.Energy[i] -= p.Decay * dt
		ps.Age[i] += dt
	}

	// Reproduction over the pre-step live range only
	if p.ReproThreshold > 0 {
		for i := 0; i < n; i++ {
			if ps.IsFood(i) || ps.Energy[i] < p.ReproThreshold {
				continue
			}
			if ps.Full() {
				res.Refused++
				continue
			}
			child := s.offspring(ps, i, r, p)
			if _, ok := ps.Add(child); ok {
				ps.Energy[i] -= child.Energy
				res.Births++
			}
		}
	}

	// Reverse scan so swap-last compaction never skips a slot
	for i := ps.Count - 1; i >= 0; i-- {
		if ps.IsFood(i) {
			if ps.Energy[i] <= 0 {
				ps.Remove(i)
				res.FoodEaten++
			}
			continue
		}
		if ps.Energy[i] <= p.DeathThreshold {
			ps.Remove(i)
			res.Deaths++
		}
	}

	if p.FoodSpawnRate > 0 {
		s.foodAccum += p.FoodSpawnRate * dt
		for s.foodAccum >= 1 {
			s.foodAccum--
			food := components.Particle{
				X:      float32(r.Range(0, float64(p.Width))),
				Y:      float32(r.Range(0, float64(p.Height))),
				Type:   components.FoodType,
				Energy: p.FoodEnergy,
				Size:   1,
			}
			if _, ok := ps.Add(food); !ok {
				s.foodAccum = 0
				break
			}
			res.FoodSpawn++
		}
	}

	return res
}

// offspring builds a child of slot i. Draw order is fixed: angle, then one
// draw per gene.
func (s *EnergySystem) offspring(ps *components.ParticleSet, i int, r rng.Source, p EnergyParams) components.Particle {
	child := ps.Get(i)
	child.Age = 0
	child.Energy = ps.Energy[i] * clamp01(p.ChildShare)

	angle := r.Range(0, 2*math.Pi)
	sin, cos := math.Sincos(angle)
	child.X += float32(cos) * p.SpawnOffset
	child.Y += float32(sin) * p.SpawnOffset
	if p.Boundary == BoundaryWrap {
		child.X = wrapCoord(child.X, p.Width)
		child.Y = wrapCoord(child.Y, p.Height)
	} else {
		child.X = clampFloat(child.X, 0, p.Width)
		child.Y = clampFloat(child.Y, 0, p.Height)
	}

	for g := range child.Genes {
		child.Genes[g] = clamp01(child.Genes[g] + float32(r.Range(-1, 1))*p.GeneSigma)
	}
	return child
}
