package sim

import (
	"github.com/pthm-cable/emergent/feedback"
	"github.com/pthm-cable/emergent/species"
	"github.com/pthm-cable/emergent/systems"
	"github.com/pthm-cable/emergent/telemetry"
)

// StepResult counts what happened in one substep.
type StepResult struct {
	Births      int
	Deaths      int
	Refused     int
	FoodEaten   int
	FoodSpawned int
	Mutations   int

	Minted    bool
	Archetype species.Archetype

	NeighborChecks int
	Interactions   int

	FeedbackEvaluated bool
	ValveTripped      bool
	RegimeChange      bool
	Regime            feedback.Regime
}

// PhaseTimer receives the name of each module as it starts.
type PhaseTimer interface {
	StartPhase(name string)
}

type noTimer struct{}

func (noTimer) StartPhase(string) {}

// Step advances w by one substep of dt seconds.
func Step(w *World, dt float32) StepResult {
	return StepTimed(w, dt, nil)
}

// StepTimed is Step with a module timer. Module order is fixed: feedback,
// kernel, energy, mutation, fields, species. The only random draws happen in
// energy and mutation, in that order.
func StepTimed(w *World, dt float32, t PhaseTimer) StepResult {
	var res StepResult
	if !(dt > 0) {
		return res
	}
	if t == nil {
		t = noTimer{}
	}
	ps := w.Particles

	t.StartPhase(telemetry.PhaseFeedback)
	var d feedback.Deltas
	if w.Feedback != nil {
		tr := w.Feedback.Tick(ps, w.Inputs(), float64(dt))
		res.FeedbackEvaluated = tr.Evaluated
		res.ValveTripped = tr.ValveTripped
		res.RegimeChange = tr.RegimeChange
		res.Regime = tr.Regime
		d = w.Feedback.Deltas()
	}
	force := d.ApplyForce(w.Force)
	mutation := d.ApplyMutation(w.Mutation)
	mutation.Types = w.Matrix.N

	t.StartPhase(telemetry.PhaseKernel)
	w.Kernel.Step(ps, w.Matrix, w.Env, force, w.Tick, dt)
	ks := w.Kernel.Stats()
	res.NeighborChecks = ks.NeighborChecks
	res.Interactions = ks.Interactions

	t.StartPhase(telemetry.PhaseEnergy)
	er := w.Energy.Step(ps, w.Kernel.Feed(), w.Env, w.RNG, w.EnergyP, dt)
	res.Births, res.Deaths, res.Refused = er.Births, er.Deaths, er.Refused
	res.FoodEaten, res.FoodSpawned = er.FoodEaten, er.FoodSpawn

	t.StartPhase(telemetry.PhaseMutation)
	res.Mutations = systems.MutateGenes(ps, w.Env, w.RNG, mutation)

	t.StartPhase(telemetry.PhaseFields)
	w.stepFields(float64(dt))

	w.Tick++
	w.SimTime += float64(dt)

	t.StartPhase(telemetry.PhaseSpecies)
	every := uint64(w.Config.Derived.TicksPerSpecies)
	if w.Registry != nil && every > 0 && w.Tick%every == 0 {
		res.Archetype, res.Minted = w.Registry.Check(ps, w.Env, w.Seed, w.SimTime, w.Tick)
	}
	return res
}

// stepFields advances each grid on its own cadence. A zero interval steps
// the grid every substep.
func (w *World) stepFields(dt float64) {
	cfg := w.Config.Fields
	advance := func(slot int, interval float64, step func(float32)) {
		w.fieldAccum[slot] += dt
		if w.fieldAccum[slot] < interval {
			return
		}
		step(float32(w.fieldAccum[slot]))
		w.fieldAccum[slot] = 0
	}
	if g := w.Env.Layers; g != nil {
		advance(cadenceLayers, cfg.Layers.Interval, g.Step)
	}
	if g := w.Env.Recursive; g != nil {
		advance(cadenceRecursive, cfg.Recursive.Interval, g.Step)
	}
	if w.Sigil != nil && w.Sigil.Grid != nil {
		advance(cadenceSigil, cfg.Sigil.Interval, w.Sigil.Step)
	}
}

// ClearFields zeroes every grid and its cadence without resizing.
func (w *World) ClearFields() {
	w.Env.Clear()
	w.fieldAccum = [numCadences]float64{}
}
