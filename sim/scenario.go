package sim

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/field"
)

// Scenario names.
const (
	ScenarioRandom      = "random"
	ScenarioSegregation = "segregation"
	ScenarioClusters    = "clusters"
	ScenarioChain       = "chain"
	ScenarioFood        = "food"
)

// Scenarios lists every scenario name.
var Scenarios = []string{ScenarioRandom, ScenarioSegregation, ScenarioClusters, ScenarioChain, ScenarioFood}

// LoadScenario replaces the population and matrix of w with the named
// layout. Fields are cleared, not resized, and the controller and energy
// system return to baseline. The archetype registry is kept.
func LoadScenario(w *World, name string) error {
	cfg := w.Config
	var setup func(w *World)
	switch name {
	case "", ScenarioRandom:
		setup = setupRandom
	case ScenarioSegregation:
		setup = setupSegregation
	case ScenarioClusters:
		setup = setupClusters
	case ScenarioChain:
		setup = setupChain
	case ScenarioFood:
		setup = setupFood
	default:
		return fmt.Errorf("unknown scenario %q", name)
	}

	w.Particles.Reset()
	w.ClearFields()
	if w.Env.Layers != nil {
		field.SeedNutrient(w.Env.Layers, w.Seed, cfg.Fields.NutrientScale)
	}
	if w.Feedback != nil {
		w.Feedback.Reset()
	}
	w.Energy.Reset()
	w.Kernel.Invalidate()

	setup(w)
	cfg.Scenario.Name = name
	return nil
}

// spawn adds one particle of type t at (x, y) with random genes.
// Draw order: one draw per gene.
func spawn(w *World, x, y float32, t int32) bool {
	p := components.Particle{
		X:      x,
		Y:      y,
		Type:   t,
		Energy: float32(w.Config.Energy.Initial),
		Size:   1,
	}
	for g := range p.Genes {
		p.Genes[g] = float32(w.RNG.Next())
	}
	_, ok := w.Particles.Add(p)
	return ok
}

// scatter spawns n particles uniformly. Draw order per particle: x, y,
// type, genes.
func scatter(w *World, n int) {
	for i := 0; i < n; i++ {
		x := float32(w.RNG.Range(0, float64(w.Force.Width)))
		y := float32(w.RNG.Range(0, float64(w.Force.Height)))
		t := int32(w.RNG.Int(0, w.Matrix.N))
		if !spawn(w, x, y, t) {
			return
		}
	}
}

func setupRandom(w *World) {
	w.SetTypes(w.baseTypes)
	w.Matrix.Randomize(w.RNG)
	w.Matrix.SetCircular(float32(w.Config.Matrix.Circular))
	scatter(w, w.Config.World.InitialCount)
}

// setupSegregation is two mutually repelling, self-attracting types.
func setupSegregation(w *World) {
	w.SetTypes(2)
	w.Matrix.SetCircular(0)
	w.Matrix.Set(0, 0, 0.3)
	w.Matrix.Set(1, 1, 0.3)
	w.Matrix.Set(0, 1, -0.3)
	w.Matrix.Set(1, 0, -0.3)
	scatter(w, w.Config.World.InitialCount)
}

// setupClusters places particles by rejection sampling against a Perlin
// density map, so the population starts in patches.
func setupClusters(w *World) {
	w.SetTypes(w.baseTypes)
	w.Matrix.Randomize(w.RNG)
	w.Matrix.SetCircular(float32(w.Config.Matrix.Circular))

	noise := perlin.NewPerlin(2, 2, 3, w.Seed)
	scale := w.Config.Scenario.ClusterScale
	if !(scale > 0) {
		scale = 4
	}
	width, height := float64(w.Force.Width), float64(w.Force.Height)

	n := w.Config.World.InitialCount
	attempts := n * 20
	for placed := 0; placed < n && attempts > 0; attempts-- {
		x := w.RNG.Range(0, width)
		y := w.RNG.Range(0, height)
		density := (noise.Noise2D(x/width*scale, y/height*scale) + 1) / 2
		density = math.Max(0, math.Min(1, density))
		if w.RNG.Next() >= density*density {
			continue
		}
		t := int32(w.RNG.Int(0, w.Matrix.N))
		if !spawn(w, float32(x), float32(y), t) {
			return
		}
		placed++
	}
}

// setupChain is a softened random matrix under a strong cyclic overlay.
func setupChain(w *World) {
	w.SetTypes(w.baseTypes)
	w.Matrix.Randomize(w.RNG)
	w.Matrix.Soften(0.3)
	strength := float32(w.Config.Matrix.Circular)
	if strength == 0 {
		strength = 0.6
	}
	w.Matrix.SetCircular(strength)
	scatter(w, w.Config.World.InitialCount)
}

// setupFood is the random layout with food sprinkled over the world.
func setupFood(w *World) {
	setupRandom(w)
	frac := w.Config.Scenario.FoodFraction
	food := int(math.Round(float64(w.Config.World.InitialCount) * frac))
	energy := float32(w.Config.Food.Energy)
	for i := 0; i < food; i++ {
		p := components.Particle{
			X:      float32(w.RNG.Range(0, float64(w.Force.Width))),
			Y:      float32(w.RNG.Range(0, float64(w.Force.Height))),
			Type:   components.FoodType,
			Energy: energy,
			Size:   1,
		}
		if _, ok := w.Particles.Add(p); !ok {
			return
		}
	}
}
