// Package telemetry provides read-only observability for the simulation:
// vital rates, window statistics, module timings, events and CSV output.
// Nothing here feeds back into the step.
package telemetry

import (
	"math"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/feedback"
)

// StepCounts are the per-substep event counts the collector consumes.
type StepCounts struct {
	Births       int
	Deaths       int
	Refused      int
	Mutations    int
	Minted       int
	ValveTripped bool

	NeighborChecks int64
	Interactions   int64
}

// Vitals are the per-tick vital rates, smoothed, and the health score.
type Vitals struct {
	BirthsPerSec    float64
	DeathsPerSec    float64
	MutationsPerSec float64
	Health          float64
}

// vitalsSmoothing is the weight of the newest tick in the vital-rate average.
const vitalsSmoothing = 0.1

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks uint64
	dt                  float64

	windowStartTick uint64
	vitals          Vitals
	primed          bool

	// Event counters for current window
	births         int
	deaths         int
	refused        int
	mutations      int
	minted         int
	valveTrips     int
	neighborChecks int64
	interactions   int64
}

// NewCollector creates a collector whose windows last windowDurationSec
// simulated seconds at dt seconds per tick.
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticks := uint64(1)
	if dt > 0 && windowDurationSec > dt {
		ticks = uint64(math.Round(windowDurationSec / dt))
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticks,
		dt:                  dt,
	}
}

// Record adds one substep's counts and updates the vital rates.
func (c *Collector) Record(sc StepCounts, dt float64) {
	c.births += sc.Births
	c.deaths += sc.Deaths
	c.refused += sc.Refused
	c.mutations += sc.Mutations
	c.minted += sc.Minted
	if sc.ValveTripped {
		c.valveTrips++
	}
	c.neighborChecks += sc.NeighborChecks
	c.interactions += sc.Interactions

	if dt <= 0 {
		return
	}
	b := float64(sc.Births) / dt
	d := float64(sc.Deaths) / dt
	m := float64(sc.Mutations) / dt
	if !c.primed {
		c.vitals.BirthsPerSec, c.vitals.DeathsPerSec, c.vitals.MutationsPerSec = b, d, m
		c.primed = true
		return
	}
	c.vitals.BirthsPerSec += (b - c.vitals.BirthsPerSec) * vitalsSmoothing
	c.vitals.DeathsPerSec += (d - c.vitals.DeathsPerSec) * vitalsSmoothing
	c.vitals.MutationsPerSec += (m - c.vitals.MutationsPerSec) * vitalsSmoothing
}

// SetHealth stores the latest health score.
func (c *Collector) SetHealth(h float64) { c.vitals.Health = h }

// Vitals returns the current vital rates.
func (c *Collector) Vitals() Vitals { return c.vitals }

// ShouldFlush reports whether a full window has elapsed by tick.
func (c *Collector) ShouldFlush(tick uint64) bool {
	return tick-c.windowStartTick >= c.windowDurationTicks
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() uint64 { return c.windowDurationTicks }

// Flush produces a WindowStats and resets counters for the next window.
// ps is sampled for population and energy, fb supplies the last metrics.
func (c *Collector) Flush(tick uint64, simTime float64, ps *components.ParticleSet, types, archetypes int, fb feedback.Telemetry) WindowStats {
	span := float64(tick-c.windowStartTick) * c.dt

	var live, food int
	var energies []float64
	present := make([]bool, types)
	if ps != nil {
		energies = make([]float64, 0, ps.Count)
		for i := 0; i < ps.Count; i++ {
			if ps.IsFood(i) {
				food++
				continue
			}
			live++
			energies = append(energies, float64(ps.Energy[i]))
			if ps.ValidType(i, types) {
				present[ps.Type[i]] = true
			}
		}
	}
	active := 0
	for _, ok := range present {
		if ok {
			active++
		}
	}
	mean, p10, p50, p90 := ComputeEnergyStats(energies)

	capacity := 0
	if ps != nil {
		capacity = ps.Max
	}
	m := fb.Metrics
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   tick,
		SimTimeSec:      simTime,

		Population:  live,
		Food:        food,
		ActiveTypes: active,
		Archetypes:  archetypes,

		Births:     c.births,
		Deaths:     c.deaths,
		Refused:    c.refused,
		Mutations:  c.mutations,
		Minted:     c.minted,
		ValveTrips: c.valveTrips,

		BirthRate:    perSecond(c.births, span),
		DeathRate:    perSecond(c.deaths, span),
		MutationRate: perSecond(c.mutations, span),

		NeighborChecks: c.neighborChecks,
		Interactions:   c.interactions,

		EnergyMean: mean,
		EnergyP10:  p10,
		EnergyP50:  p50,
		EnergyP90:  p90,

		Entropy:    m.Entropy,
		Clustering: m.Clustering,
		Conflict:   m.Conflict,
		Diversity:  m.Diversity,
		Stagnation: m.Stagnation,
		Regime:     fb.Regime,

		Health: Health(live, capacity, m),
	}

	c.windowStartTick = tick
	c.births, c.deaths, c.refused, c.mutations, c.minted, c.valveTrips = 0, 0, 0, 0, 0, 0
	c.neighborChecks, c.interactions = 0, 0
	return stats
}

func perSecond(n int, span float64) float64 {
	if span <= 0 {
		return 0
	}
	return float64(n) / span
}

// Health is a coarse [0, 1] score: zero for an empty world, otherwise a
// blend of type diversity, low conflict, motion and mid-range occupancy.
func Health(live, capacity int, m feedback.Metrics) float64 {
	if live == 0 || capacity <= 0 {
		return 0
	}
	occ := float64(live) / float64(capacity)
	occupancy := 4 * occ * (1 - occ)
	h := 0.3*m.Diversity + 0.25*(1-m.Conflict) + 0.25*(1-m.Stagnation) + 0.2*occupancy
	return math.Max(0, math.Min(1, h))
}
