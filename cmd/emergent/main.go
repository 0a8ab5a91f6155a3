// Command emergent runs the particle simulation headless and writes
// telemetry, events and snapshots to disk.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshots taken on archetype mints")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed)")
	timeSeed := flag.Bool("time-seed", false, "Seed from the wall clock")
	scenario := flag.String("scenario", "", "Initial layout: random, segregation, clusters, chain, food (empty = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	noFeedback := flag.Bool("no-feedback", false, "Run with the feedback controller disabled")
	snapshotEvery := flag.Int("snapshot-every", 0, "Also snapshot every N ticks (0 = off)")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if *timeSeed {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	s, err := sim.NewSimulation(cfg, sim.Options{
		Seed:           rngSeed,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		SnapshotDir:    *snapshotDir,
		Scenario:       *scenario,
	})
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Error("failed to close simulation", "error", err)
		}
	}()
	if *noFeedback {
		s.SetFeedbackEnabled(false)
	}

	w := s.World()
	slog.Info("starting headless simulation",
		"seed", w.Seed,
		"scenario", w.Config.Scenario.Name,
		"particles", w.Particles.Count,
		"types", w.Matrix.N,
		"feedback", w.Feedback.Enabled(),
		"max_ticks", *maxTicks,
	)

	for {
		s.RunTicks(1)
		tick := s.Tick()

		if *snapshotEvery > 0 && *snapshotDir != "" && tick%uint64(*snapshotEvery) == 0 {
			if path, err := sim.SaveSnapshot(s.Snapshot(), *snapshotDir); err != nil {
				slog.Error("failed to save snapshot", "error", err)
			} else {
				slog.Info("snapshot saved", "tick", tick, "path", path)
			}
		}

		if *maxTicks > 0 && tick >= uint64(*maxTicks) {
			tel := s.Telemetry()
			slog.Info("max ticks reached",
				"tick", tick,
				"population", tel.Population,
				"archetypes", tel.Archetypes,
				"valve_trips", tel.Feedback.ValveTrips,
			)
			return
		}
	}
}
