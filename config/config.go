// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/emergent/field"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Matrix    MatrixConfig    `yaml:"matrix"`
	Food      FoodConfig      `yaml:"food"`
	Coupling  CouplingConfig  `yaml:"coupling"`
	Deposit   DepositConfig   `yaml:"deposit"`
	Energy    EnergyConfig    `yaml:"energy"`
	Mutation  MutationConfig  `yaml:"mutation"`
	Fields    FieldsConfig    `yaml:"fields"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Species   SpeciesConfig   `yaml:"species"`
	Scenario  ScenarioConfig  `yaml:"scenario"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" json:"-"`
}

// WorldConfig holds world dimensions and population limits.
type WorldConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	Capacity     int     `yaml:"capacity"`      // particle slots preallocated at reset
	InitialCount int     `yaml:"initial_count"` // particles spawned by a scenario
	Types        int     `yaml:"types"`
	Seed         int64   `yaml:"seed"`
}

// PhysicsConfig holds integration and force-law parameters.
type PhysicsConfig struct {
	DT          float64 `yaml:"dt"`           // fixed substep, seconds
	MaxSubsteps int     `yaml:"max_substeps"` // per host frame; surplus is discarded
	Speed       float64 `yaml:"speed"`        // elapsed-time multiplier
	Kernel      string  `yaml:"kernel"`       // "classic" or "power"
	Boundary    string  `yaml:"boundary"`     // "wrap" or "bounce"
	ForceScale  float64 `yaml:"force_scale"`
	Drag        float64 `yaml:"drag"`  // per second
	Noise       float64 `yaml:"noise"` // hash jitter amplitude
	Beta        float64 `yaml:"beta"`  // core repulsion fraction of radius
	RadiusScale float64 `yaml:"radius_scale"`
	MinCellSize float64 `yaml:"min_cell_size"`
	MaxSpeed    float64 `yaml:"max_speed"`
}

// MatrixConfig holds the interaction matrix defaults.
type MatrixConfig struct {
	Radius   float64 `yaml:"radius"`
	Falloff  float64 `yaml:"falloff"`
	Circular float64 `yaml:"circular"` // ring overlay strength, 0 = off
}

// FoodConfig holds food particle parameters.
type FoodConfig struct {
	Decay     float64 `yaml:"decay"`      // exponential energy decay per second
	Reach     float64 `yaml:"reach"`      // distance at which food is eaten
	Bite      float64 `yaml:"bite"`       // energy taken per second while in reach
	Energy    float64 `yaml:"energy"`     // energy of freshly spawned food
	SpawnRate float64 `yaml:"spawn_rate"` // food particles per second, 0 = none
}

// CouplingConfig holds the field-to-force coupling gains.
type CouplingConfig struct {
	ScarcityBeta   float64 `yaml:"scarcity_beta"`
	VolatilityDrag float64 `yaml:"volatility_drag"`
	CohesionDrag   float64 `yaml:"cohesion_drag"`
}

// DepositConfig holds the thresholds for particle-to-field deposits.
type DepositConfig struct {
	Strong       float64 `yaml:"strong"`        // |force| above which an interaction deposits
	Cap          float64 `yaml:"cap"`           // ceiling per deposit event
	LowSpeed     float64 `yaml:"low_speed"`     // settled below this speed
	RichNutrient float64 `yaml:"rich_nutrient"` // nutrient level counted as rich
	FastSpeed    float64 `yaml:"fast_speed"`    // agitated above this speed
}

// EnergyConfig holds energy and reproduction parameters.
type EnergyConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Initial        float64 `yaml:"initial"`
	FeedRate       float64 `yaml:"feed_rate"`
	Decay          float64 `yaml:"decay"` // per second
	ReproThreshold float64 `yaml:"repro_threshold"`
	DeathThreshold float64 `yaml:"death_threshold"`
	ChildShare     float64 `yaml:"child_share"` // fraction of parent energy given to the child
	SpawnOffset    float64 `yaml:"spawn_offset"`
	GeneSigma      float64 `yaml:"gene_sigma"`
}

// MutationConfig holds gene drift parameters.
type MutationConfig struct {
	Rate           float64 `yaml:"rate"`
	EntropyGain    float64 `yaml:"entropy_gain"`
	MaxDelta       float64 `yaml:"max_delta"`
	SampleFraction float64 `yaml:"sample_fraction"`
}

// FieldsConfig holds the three field grids.
type FieldsConfig struct {
	Enabled       bool             `yaml:"enabled"`
	NutrientScale float64          `yaml:"nutrient_scale"` // noise features across the world
	Layers        field.GridConfig `yaml:"layers"`
	Recursive     field.GridConfig `yaml:"recursive"`
	Sigil         SigilConfig      `yaml:"sigil"`
}

// SigilConfig holds the optional secondary layer.
type SigilConfig struct {
	Enabled          bool    `yaml:"enabled"`
	EchoRate         float64 `yaml:"echo_rate"`
	field.GridConfig `yaml:",inline"`
}

// FeedbackConfig holds the closed-loop controller parameters.
type FeedbackConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Interval         int     `yaml:"interval"` // substeps between evaluations
	Strength         float64 `yaml:"strength"`
	ChaosClamp       float64 `yaml:"chaos_clamp"`
	Inertia          float64 `yaml:"inertia"` // 0 = no smoothing, 1 = frozen
	SampleSize       int     `yaml:"sample_size"`
	HistoryLength    int     `yaml:"history_length"`
	StagnationWindow int     `yaml:"stagnation_window"`
	PhaseRate        float64 `yaml:"phase_rate"` // cycles per second
	StagnationAccel  float64 `yaml:"stagnation_accel"`
	ConflictBrake    float64 `yaml:"conflict_brake"`
	SpeedThreshold   float64 `yaml:"speed_threshold"` // fraction of max speed counted as conflict
	MinTypeShare     float64 `yaml:"min_type_share"`
	CoarseGrid       int     `yaml:"coarse_grid"` // cells per side for entropy/clustering
	Bands            Bands   `yaml:"bands"`
	Valve            Valve   `yaml:"valve"`
}

// Band is a deadzone [Low, High]. Activation is zero inside it.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Bands holds the target band per metric.
type Bands struct {
	Entropy    Band `yaml:"entropy"`
	Clustering Band `yaml:"clustering"`
	Conflict   Band `yaml:"conflict"`
	Diversity  Band `yaml:"diversity"`
	Stagnation Band `yaml:"stagnation"`
}

// Valve holds the runaway-protection thresholds.
type Valve struct {
	Conflict    float64 `yaml:"conflict"`
	Energy      float64 `yaml:"energy"`
	Consecutive int     `yaml:"consecutive"` // evaluations above threshold before tripping
	Cooldown    int     `yaml:"cooldown"`    // evaluations with zero modulation after a trip
}

// SpeciesConfig holds speciation detector parameters.
type SpeciesConfig struct {
	Enabled       bool    `yaml:"enabled"`
	IntervalSec   float64 `yaml:"interval_sec"`
	SampleSize    int     `yaml:"sample_size"`
	MinDistance   float64 `yaml:"min_distance"`
	MinVolatility float64 `yaml:"min_volatility"`
	MinScarcity   float64 `yaml:"min_scarcity"`
}

// ScenarioConfig selects the initial layout.
type ScenarioConfig struct {
	Name         string  `yaml:"name"` // random, segregation, clusters, chain, food
	FoodFraction float64 `yaml:"food_fraction"`
	ClusterScale float64 `yaml:"cluster_scale"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow  float64 `yaml:"stats_window"`  // seconds per window
	PerfWindow   int     `yaml:"perf_window"`   // ticks in the rolling perf buffer
	LogStats     bool    `yaml:"log_stats"`     // emit window stats through slog
	PerfInterval int     `yaml:"perf_interval"` // ticks between perf log lines, 0 = off
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32     float32
	WorldW32 float32
	WorldH32 float32
	// TicksPerSpecies is the speciation cadence in substeps.
	TicksPerSpecies int
}

var global *Config

// Init loads configuration from the given path, or embedded defaults if path is empty.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit calls Init and panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config init failed: %v", err))
	}
}

// Cfg returns the global configuration.
func Cfg() *Config {
	if global == nil {
		panic("config not initialized: call config.Init() first")
	}
	return global
}

// Load reads configuration from a YAML file, using embedded defaults for missing values.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Physics.DT <= 0 {
		c.Physics.DT = 1.0 / 60.0
	}
	if c.Physics.MaxSubsteps < 1 {
		c.Physics.MaxSubsteps = 1
	}
	if c.World.Types < 1 {
		c.World.Types = 1
	}
	if c.World.InitialCount > c.World.Capacity {
		c.World.InitialCount = c.World.Capacity
	}

	c.Derived.DT32 = float32(c.Physics.DT)
	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)

	ticks := int(c.Species.IntervalSec / c.Physics.DT)
	if ticks < 1 {
		ticks = 1
	}
	c.Derived.TicksPerSpecies = ticks
}

// Finalize recomputes derived values after fields were edited in code.
func (c *Config) Finalize() {
	c.computeDerived()
}

// Clone returns a deep copy. Channel lists are copied so edits do not alias.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Fields.Layers.Channels = append([]field.ChannelSpec(nil), c.Fields.Layers.Channels...)
	cp.Fields.Recursive.Channels = append([]field.ChannelSpec(nil), c.Fields.Recursive.Channels...)
	cp.Fields.Sigil.Channels = append([]field.ChannelSpec(nil), c.Fields.Sigil.Channels...)
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
