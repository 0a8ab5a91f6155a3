// Package sim wires the particle core into a runnable world: the per-substep
// Step function, the fixed-timestep host, scenarios and snapshots.
package sim

import (
	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/feedback"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/matrix"
	"github.com/pthm-cable/emergent/rng"
	"github.com/pthm-cable/emergent/species"
	"github.com/pthm-cable/emergent/systems"
)

// Field cadence slots.
const (
	cadenceLayers = iota
	cadenceRecursive
	cadenceSigil
	numCadences
)

// World bundles every piece of simulation state a step touches.
type World struct {
	Config *config.Config
	Seed   int64

	Particles *components.ParticleSet
	Matrix    *matrix.Matrix
	Env       *field.Environment
	// Sigil is the grid-backed sigil layer stepped by the world. It is nil
	// when fields are off or the host installed its own layer.
	Sigil *field.SigilLayer

	RNG      rng.Source
	Kernel   *systems.ForceKernel
	Energy   *systems.EnergySystem
	Feedback *feedback.Controller // nil runs without a controller in the loop
	Registry *species.Registry

	// Base parameters. The controller hands the systems modulated copies.
	Force    systems.ForceParams
	EnergyP  systems.EnergyParams
	Mutation systems.MutationParams

	Tick    uint64
	SimTime float64

	baseTypes  int // configured type count, restored by scenarios
	fieldAccum [numCadences]float64
}

// NewWorld builds an empty world from cfg. Particles are added by a scenario.
func NewWorld(cfg *config.Config) *World {
	cfg = cfg.Clone()
	cfg.Finalize()

	w := &World{
		Config:    cfg,
		Seed:      cfg.World.Seed,
		Particles: components.NewParticleSet(cfg.World.Capacity),
		Matrix:    matrix.New(cfg.World.Types, float32(cfg.Matrix.Radius), float32(cfg.Matrix.Falloff)),
		Env:       &field.Environment{},
		RNG:       rng.New(cfg.World.Seed),
		Kernel:    systems.NewForceKernel(cfg.Derived.WorldW32, cfg.Derived.WorldH32),
		Energy:    systems.NewEnergySystem(),
		Feedback:  feedback.NewController(cfg.Feedback),
		Registry:  species.NewRegistry(cfg.Species),
		baseTypes: cfg.World.Types,
	}
	w.buildFields()
	w.refreshParams()
	return w
}

func (w *World) buildFields() {
	cfg := w.Config
	w.Env = &field.Environment{}
	w.Sigil = nil
	if !cfg.Fields.Enabled {
		return
	}
	ww, wh := cfg.Derived.WorldW32, cfg.Derived.WorldH32
	w.Env.Layers = field.NewLayers(cfg.Fields.Layers, ww, wh)
	w.Env.Recursive = field.NewRecursive(cfg.Fields.Recursive, ww, wh)
	if cfg.Fields.Sigil.Enabled {
		w.Sigil = &field.SigilLayer{
			Grid:     field.NewSigil(cfg.Fields.Sigil.GridConfig, ww, wh),
			EchoRate: float32(cfg.Fields.Sigil.EchoRate),
		}
		w.Env.Sigil = w.Sigil
	}
}

// refreshParams rebuilds the base parameter sets from the config.
func (w *World) refreshParams() {
	w.Force = systems.ForceParamsFrom(w.Config)
	w.EnergyP = systems.EnergyParamsFrom(w.Config)
	w.Mutation = systems.MutationParamsFrom(w.Config)
}

// SetSigilLayer installs a host-provided sigil layer. A *field.SigilLayer is
// stepped by the world; any other Layer is the host's to advance.
func (w *World) SetSigilLayer(l field.Layer) {
	w.Env.Sigil = l
	w.Sigil, _ = l.(*field.SigilLayer)
}

// SetTypes changes the type count, resizing the matrix. New matrix cells get
// random attraction from the world's source.
func (w *World) SetTypes(n int) {
	if n < 1 || n == w.Matrix.N {
		return
	}
	w.Matrix.Resize(n, w.RNG)
	w.Mutation.Types = n
}

// Inputs returns the controller inputs for the current world.
func (w *World) Inputs() feedback.Inputs {
	return feedback.Inputs{
		Types:    w.Matrix.N,
		Width:    w.Force.Width,
		Height:   w.Force.Height,
		MaxSpeed: w.Force.MaxSpeed,
	}
}

// LiveCount returns the number of non-food particles.
func (w *World) LiveCount() int {
	n := 0
	ps := w.Particles
	for i := 0; i < ps.Count; i++ {
		if !ps.IsFood(i) {
			n++
		}
	}
	return n
}
