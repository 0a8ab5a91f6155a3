package feedback

import (
	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
)

// State is the controller's persistent, serializable state.
type State struct {
	History     History     `json:"history"`
	Activations Activations `json:"activations"`
	Phase       float64     `json:"phase"`
	Deltas      Deltas      `json:"deltas"`
	Last        Metrics     `json:"last"`

	Strikes     int    `json:"strikes"`  // consecutive evaluations above a valve threshold
	Cooldown    int    `json:"cooldown"` // evaluations left with modulation forced to zero
	ValveTrips  int    `json:"valve_trips"`
	Frame       uint64 `json:"frame"`
	Evaluations uint64 `json:"evaluations"`
}

// Inputs describes the world the controller measures.
type Inputs struct {
	Types    int
	Width    float32
	Height   float32
	MaxSpeed float32
}

// TickResult reports what happened during one Tick.
type TickResult struct {
	Evaluated    bool
	ValveTripped bool
	RegimeChange bool
	Regime       Regime
}

// Controller measures the population on a frame cadence and produces the
// deltas applied to the next substeps. When disabled it leaves every delta
// at exactly zero.
type Controller struct {
	cfg     config.FeedbackConfig
	sampler Sampler

	State State
}

// NewController creates a controller from cfg.
func NewController(cfg config.FeedbackConfig) *Controller {
	c := &Controller{cfg: cfg}
	c.sampler = Sampler{
		SampleSize:   cfg.SampleSize,
		CoarseGrid:   cfg.CoarseGrid,
		SpeedFrac:    cfg.SpeedThreshold,
		MinTypeShare: cfg.MinTypeShare,
	}
	c.Reset()
	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() config.FeedbackConfig { return c.cfg }

// Enabled reports whether the controller modulates anything.
func (c *Controller) Enabled() bool { return c.cfg.Enabled }

// SetEnabled toggles the controller. Disabling zeroes the deltas at once.
func (c *Controller) SetEnabled(on bool) {
	c.cfg.Enabled = on
	if !on {
		c.State.Deltas = Deltas{}
	}
}

// Reset clears history, activations, phase and deltas to baseline.
// The particle population is not touched.
func (c *Controller) Reset() {
	c.State = State{History: NewHistory(c.cfg.HistoryLength)}
}

// Deltas returns the deltas to apply to the current substep.
func (c *Controller) Deltas() Deltas {
	if c == nil || !c.cfg.Enabled {
		return Deltas{}
	}
	return c.State.Deltas
}

// Tick advances the phase by dt and, every Interval frames, evaluates the
// metrics and recomputes the deltas. It never draws from a random source.
func (c *Controller) Tick(ps *components.ParticleSet, in Inputs, dt float64) TickResult {
	var res TickResult
	if !c.cfg.Enabled {
		c.State.Deltas = Deltas{}
		return res
	}
	st := &c.State
	st.Frame++

	before := RegimeOf(st.Phase)
	st.Phase = advancePhase(st.Phase, dt, c.cfg, st.Last)
	res.Regime = RegimeOf(st.Phase)
	res.RegimeChange = res.Regime != before

	interval := uint64(c.cfg.Interval)
	if interval < 1 {
		interval = 1
	}
	if st.Frame%interval != 0 {
		return res
	}
	res.Evaluated = true
	res.ValveTripped = c.evaluate(ps, in)
	return res
}

func (c *Controller) evaluate(ps *components.ParticleSet, in Inputs) bool {
	st := &c.State
	st.Evaluations++

	m := c.sampler.Measure(ps, in.Types, in.Width, in.Height, in.MaxSpeed)
	st.History.Push(m)
	m.Stagnation = Stagnation(&st.History, c.cfg.StagnationWindow)
	st.Last = m

	st.Activations = smooth(st.Activations, targetActivations(m, c.cfg.Bands), c.cfg.Inertia)

	tripped := c.valve(m)
	if st.Cooldown > 0 {
		st.Cooldown--
		st.Deltas = Deltas{}
		return tripped
	}
	st.Deltas = computeDeltas(st.Activations, st.Phase, Limit(c.cfg.Strength, c.cfg.ChaosClamp))
	return tripped
}

// valve counts consecutive pathological evaluations and starts a cooldown
// once the streak reaches Valve.Consecutive. The tripping evaluation is the
// first of the cooldown. Returns true on the trip.
func (c *Controller) valve(m Metrics) bool {
	v := c.cfg.Valve
	st := &c.State
	// No strikes accrue while the valve is already open
	if v.Consecutive < 1 || st.Cooldown > 0 {
		return false
	}
	if m.Conflict >= v.Conflict || m.Energy >= v.Energy {
		st.Strikes++
	} else {
		st.Strikes = 0
	}
	if st.Strikes < v.Consecutive {
		return false
	}
	st.Strikes = 0
	st.Cooldown = v.Cooldown
	st.ValveTrips++
	return true
}

// Telemetry is a read-only view of the controller.
type Telemetry struct {
	Enabled     bool
	Metrics     Metrics
	Activations Activations
	Phase       float64
	Regime      string
	Deltas      Deltas
	Cooldown    int
	ValveTrips  int
	Evaluations uint64
}

// Telemetry returns a copy of the current state for observers.
func (c *Controller) Telemetry() Telemetry {
	if c == nil {
		return Telemetry{}
	}
	st := c.State
	return Telemetry{
		Enabled:     c.cfg.Enabled,
		Metrics:     st.Last,
		Activations: st.Activations,
		Phase:       st.Phase,
		Regime:      RegimeOf(st.Phase).String(),
		Deltas:      c.Deltas(),
		Cooldown:    st.Cooldown,
		ValveTrips:  st.ValveTrips,
		Evaluations: st.Evaluations,
	}
}

// Restore replaces the state, keeping the configured history capacity when
// the restored ring is empty.
func (c *Controller) Restore(st State) {
	if st.History.Cap() == 0 {
		st.History = NewHistory(c.cfg.HistoryLength)
	}
	c.State = st
}
