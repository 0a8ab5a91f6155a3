package sim

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/feedback"
	"github.com/pthm-cable/emergent/systems"
	"github.com/pthm-cable/emergent/telemetry"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 256

// Options configures a Simulation host.
type Options struct {
	Seed           int64 // overrides the config seed when non-zero
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	OutputDir      string  // CSV output, empty = off
	SnapshotDir    string  // snapshot on archetype mint, empty = off
	Scenario       string  // empty = use config

	// StatsCallback receives every flushed window.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation owns a World and drives it on a fixed timestep.
type Simulation struct {
	world *World
	opts  Options

	accum  float64
	paused bool

	collector  *telemetry.Collector
	perf       *telemetry.PerfCollector
	output     *telemetry.OutputManager
	extinction *telemetry.ExtinctionWatch

	events     []telemetry.Event
	lastWindow telemetry.WindowStats
	lastKernel systems.KernelStats
}

// NewSimulation builds a world from cfg, loads the scenario and opens the
// output directory when one is set.
func NewSimulation(cfg *config.Config, opts Options) (*Simulation, error) {
	cfg = cfg.Clone()
	if opts.Seed != 0 {
		cfg.World.Seed = opts.Seed
	}
	cfg.Finalize()

	window := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		window = opts.StatsWindowSec
	}

	s := &Simulation{
		world:      NewWorld(cfg),
		opts:       opts,
		collector:  telemetry.NewCollector(window, cfg.Physics.DT),
		perf:       telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		extinction: telemetry.NewExtinctionWatch(cfg.World.Types),
	}

	scenario := opts.Scenario
	if scenario == "" {
		scenario = cfg.Scenario.Name
	}
	if err := LoadScenario(s.world, scenario); err != nil {
		return nil, err
	}
	s.extinction.Resize(s.world.Matrix.N)
	s.extinction.Check(0, 0, s.world.Particles.Type[:s.world.Particles.Count])

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	s.output = om
	if err := om.WriteConfig(s.world.Config); err != nil {
		om.Close()
		return nil, err
	}
	return s, nil
}

// World exposes the simulated world. Mutating it between updates is allowed.
func (s *Simulation) World() *World { return s.world }

// Tick returns the number of substeps run.
func (s *Simulation) Tick() uint64 { return s.world.Tick }

// SetPaused stops or resumes Update.
func (s *Simulation) SetPaused(p bool) {
	s.paused = p
	if p {
		s.accum = 0
	}
}

// Paused reports whether Update is a no-op.
func (s *Simulation) Paused() bool { return s.paused }

// SetFeedbackEnabled toggles the controller.
func (s *Simulation) SetFeedbackEnabled(on bool) {
	if c := s.world.Feedback; c != nil {
		c.SetEnabled(on)
	}
}

// LoadScenario replaces the population with the named layout.
func (s *Simulation) LoadScenario(name string) error {
	if err := LoadScenario(s.world, name); err != nil {
		return err
	}
	s.accum = 0
	s.extinction.Resize(s.world.Matrix.N)
	s.extinction.Check(s.world.Tick, s.world.SimTime, s.world.Particles.Type[:s.world.Particles.Count])
	return nil
}

// Update advances by elapsed host seconds scaled by the configured speed.
// At most MaxSubsteps substeps run; whole steps beyond that are dropped.
// Returns the number of substeps run.
func (s *Simulation) Update(elapsed float64) int {
	if s.paused || !(elapsed > 0) {
		return 0
	}
	ph := s.world.Config.Physics
	s.accum += elapsed * ph.Speed

	n := 0
	for s.accum >= ph.DT && n < ph.MaxSubsteps {
		s.substep()
		s.accum -= ph.DT
		n++
	}
	if s.accum >= ph.DT {
		s.accum = math.Mod(s.accum, ph.DT)
	}
	return n
}

// RunTicks runs n substeps back to back, ignoring the accumulator.
func (s *Simulation) RunTicks(n int) {
	for i := 0; i < n; i++ {
		s.substep()
	}
}

func (s *Simulation) substep() {
	w := s.world
	dt := w.Config.Derived.DT32

	s.perf.StartTick()
	res := StepTimed(w, dt, s.perf)
	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.lastKernel = w.Kernel.Stats()
	s.record(res, float64(dt))
	s.perf.EndTick()

	if every := w.Config.Telemetry.PerfInterval; every > 0 && w.Tick%uint64(every) == 0 && s.opts.LogStats {
		s.perf.Stats().LogStats()
	}
	s.flushTelemetry()
}

// record feeds the collector and turns step results into events.
func (s *Simulation) record(res StepResult, dt float64) {
	w := s.world
	s.collector.Record(telemetry.StepCounts{
		Births:         res.Births,
		Deaths:         res.Deaths,
		Refused:        res.Refused,
		Mutations:      res.Mutations,
		Minted:         boolCount(res.Minted),
		ValveTripped:   res.ValveTripped,
		NeighborChecks: int64(res.NeighborChecks),
		Interactions:   int64(res.Interactions),
	}, dt)

	if res.ValveTripped {
		s.emit(telemetry.NewValveEvent(w.Tick, w.SimTime, w.Feedback.State.ValveTrips))
	}
	if res.RegimeChange {
		s.emit(telemetry.NewPhaseEvent(w.Tick, w.SimTime, res.Regime.String()))
	}
	if res.Minted {
		a := res.Archetype
		s.emit(telemetry.NewMintEvent(w.Tick, w.SimTime, a.Index, a.Name, a.Sigil))
		if s.opts.SnapshotDir != "" {
			if _, err := SaveSnapshot(TakeSnapshot(w), s.opts.SnapshotDir); err != nil {
				slog.Error("failed to save snapshot", "error", err)
			}
		}
	}
	if res.Deaths > 0 {
		for _, e := range s.extinction.Check(w.Tick, w.SimTime, w.Particles.Type[:w.Particles.Count]) {
			s.emit(e)
		}
	}
}

func (s *Simulation) emit(e telemetry.Event) {
	if len(s.events) == maxEvents {
		copy(s.events, s.events[1:])
		s.events = s.events[:maxEvents-1]
	}
	s.events = append(s.events, e)
	if s.opts.LogStats {
		e.LogEvent()
	}
	if err := s.output.WriteEvent(e); err != nil {
		slog.Error("failed to write event", "error", err)
	}
}

// flushTelemetry closes the stats window when it is due.
func (s *Simulation) flushTelemetry() {
	w := s.world
	if !s.collector.ShouldFlush(w.Tick) {
		return
	}
	stats := s.collector.Flush(w.Tick, w.SimTime, w.Particles, w.Matrix.N, w.Registry.Len(), w.Feedback.Telemetry())
	s.collector.SetHealth(stats.Health)
	s.lastWindow = stats
	perfStats := s.perf.Stats()

	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}
	if s.opts.LogStats {
		stats.LogStats()
	}
	if err := s.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// Telemetry is the read-only view a HUD consumes.
type Telemetry struct {
	Tick       uint64
	SimTime    float64
	Population int
	Capacity   int
	Archetypes int
	Paused     bool

	Vitals   telemetry.Vitals
	Window   telemetry.WindowStats // last flushed window
	Perf     telemetry.PerfStats
	Kernel   systems.KernelStats
	Feedback feedback.Telemetry
}

// Telemetry returns a copy of the current observability state.
func (s *Simulation) Telemetry() Telemetry {
	w := s.world
	fb := w.Feedback.Telemetry()
	live := w.LiveCount()
	v := s.collector.Vitals()
	v.Health = telemetry.Health(live, w.Particles.Max, fb.Metrics)
	return Telemetry{
		Tick:       w.Tick,
		SimTime:    w.SimTime,
		Population: live,
		Capacity:   w.Particles.Max,
		Archetypes: w.Registry.Len(),
		Paused:     s.paused,
		Vitals:     v,
		Window:     s.lastWindow,
		Perf:       s.perf.Stats(),
		Kernel:     s.lastKernel,
		Feedback:   fb,
	}
}

// Events returns the most recent events, oldest first.
func (s *Simulation) Events() []telemetry.Event {
	return append([]telemetry.Event(nil), s.events...)
}

// Snapshot returns a deep copy of the world state.
func (s *Simulation) Snapshot() *Snapshot { return TakeSnapshot(s.world) }

// Restore replaces the world state and resets the accumulator.
func (s *Simulation) Restore(snap *Snapshot) error {
	if err := Restore(s.world, snap); err != nil {
		return err
	}
	s.accum = 0
	s.extinction.Resize(s.world.Matrix.N)
	s.extinction.Check(s.world.Tick, s.world.SimTime, s.world.Particles.Type[:s.world.Particles.Count])
	return nil
}

// Close writes the archetype list and closes the output files.
func (s *Simulation) Close() error {
	if s.output == nil {
		return nil
	}
	if err := s.output.WriteJSON("archetypes.json", s.world.Registry.Entries()); err != nil {
		s.output.Close()
		return fmt.Errorf("closing simulation: %w", err)
	}
	return s.output.Close()
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
