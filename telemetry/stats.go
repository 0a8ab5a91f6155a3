package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick uint64  `csv:"-"`
	WindowEndTick   uint64  `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Population  int `csv:"population"`
	Food        int `csv:"food"`
	ActiveTypes int `csv:"active_types"`
	Archetypes  int `csv:"archetypes"`

	// Events during window
	Births     int `csv:"births"`
	Deaths     int `csv:"deaths"`
	Refused    int `csv:"refused"`
	Mutations  int `csv:"mutations"`
	Minted     int `csv:"minted"`
	ValveTrips int `csv:"valve_trips"`

	// Vital rates per simulated second over the window
	BirthRate    float64 `csv:"birth_rate"`
	DeathRate    float64 `csv:"death_rate"`
	MutationRate float64 `csv:"mutation_rate"`

	// Kernel work summed over the window
	NeighborChecks int64 `csv:"neighbor_checks"`
	Interactions   int64 `csv:"interactions"`

	// Energy distribution sampled at window end
	EnergyMean float64 `csv:"energy_mean"`
	EnergyP10  float64 `csv:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90"`

	// Last feedback metrics
	Entropy    float64 `csv:"entropy"`
	Clustering float64 `csv:"clustering"`
	Conflict   float64 `csv:"conflict"`
	Diversity  float64 `csv:"diversity"`
	Stagnation float64 `csv:"stagnation"`
	Regime     string  `csv:"regime"`

	Health float64 `csv:"health"`
}

// Quantile returns the empirical p-quantile of sorted, or 0 when empty.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeEnergyStats calculates the mean and the 10/50/90 quantiles.
func ComputeEnergyStats(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean = stat.Mean(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Quantile(sorted, 0.10), Quantile(sorted, 0.50), Quantile(sorted, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("population", s.Population),
		slog.Int("food", s.Food),
		slog.Int("active_types", s.ActiveTypes),
		slog.Int("archetypes", s.Archetypes),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("mutations", s.Mutations),
		slog.Int("minted", s.Minted),
		slog.Int("valve_trips", s.ValveTrips),
		slog.Float64("birth_rate", s.BirthRate),
		slog.Float64("death_rate", s.DeathRate),
		slog.Float64("mutation_rate", s.MutationRate),
		slog.Int64("neighbor_checks", s.NeighborChecks),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("diversity", s.Diversity),
		slog.Float64("conflict", s.Conflict),
		slog.String("regime", s.Regime),
		slog.Float64("health", s.Health),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
