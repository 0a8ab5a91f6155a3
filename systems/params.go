package systems

import (
	"strings"

	"github.com/pthm-cable/emergent/config"
)

// KernelKind selects the pairwise force law.
type KernelKind uint8

const (
	// KernelClassic is core repulsion below Beta then a triangular attraction bump.
	KernelClassic KernelKind = iota
	// KernelPower is attraction * (1 - r)^falloff.
	KernelPower
)

func (k KernelKind) String() string {
	if k == KernelPower {
		return "power"
	}
	return "classic"
}

// ParseKernel maps a config string to a KernelKind. Unknown names give classic.
func ParseKernel(s string) KernelKind {
	if strings.EqualFold(s, "power") {
		return KernelPower
	}
	return KernelClassic
}

// BoundaryMode selects what happens at the world edge.
type BoundaryMode uint8

const (
	BoundaryWrap BoundaryMode = iota
	BoundaryBounce
)

func (b BoundaryMode) String() string {
	if b == BoundaryBounce {
		return "bounce"
	}
	return "wrap"
}

// ParseBoundary maps a config string to a BoundaryMode. Unknown names give wrap.
func ParseBoundary(s string) BoundaryMode {
	if strings.EqualFold(s, "bounce") {
		return BoundaryBounce
	}
	return BoundaryWrap
}

// Coupling holds the gains by which the local field signal perturbs beta and drag.
type Coupling struct {
	ScarcityBeta   float32
	VolatilityDrag float32
	CohesionDrag   float32
}

// DepositParams holds the thresholds for particle-to-field deposits.
type DepositParams struct {
	Strong       float32
	Cap          float32
	LowSpeed     float32
	RichNutrient float32
	FastSpeed    float32
}

// ForceParams is the per-step force configuration. The feedback controller
// hands the kernel a modulated copy; the base value is never written.
type ForceParams struct {
	Kernel   KernelKind
	Boundary BoundaryMode

	Width, Height float32

	ForceScale  float32
	Drag        float32
	Noise       float32
	Beta        float32
	RadiusScale float32
	MinCellSize float32
	MaxSpeed    float32

	FoodDecay float32
	FoodReach float32
	FoodBite  float32

	Coupling Coupling
	Deposit  DepositParams
}

// ForceParamsFrom builds kernel parameters from the loaded config.
func ForceParamsFrom(cfg *config.Config) ForceParams {
	ph := cfg.Physics
	return ForceParams{
		Kernel:      ParseKernel(ph.Kernel),
		Boundary:    ParseBoundary(ph.Boundary),
		Width:       cfg.Derived.WorldW32,
		Height:      cfg.Derived.WorldH32,
		ForceScale:  float32(ph.ForceScale),
		Drag:        float32(ph.Drag),
		Noise:       float32(ph.Noise),
		Beta:        float32(ph.Beta),
		RadiusScale: float32(ph.RadiusScale),
		MinCellSize: float32(ph.MinCellSize),
		MaxSpeed:    float32(ph.MaxSpeed),
		FoodDecay:   float32(cfg.Food.Decay),
		FoodReach:   float32(cfg.Food.Reach),
		FoodBite:    float32(cfg.Food.Bite),
		Coupling: Coupling{
			ScarcityBeta:   float32(cfg.Coupling.ScarcityBeta),
			VolatilityDrag: float32(cfg.Coupling.VolatilityDrag),
			CohesionDrag:   float32(cfg.Coupling.CohesionDrag),
		},
		Deposit: DepositParams{
			Strong:       float32(cfg.Deposit.Strong),
			Cap:          float32(cfg.Deposit.Cap),
			LowSpeed:     float32(cfg.Deposit.LowSpeed),
			RichNutrient: float32(cfg.Deposit.RichNutrient),
			FastSpeed:    float32(cfg.Deposit.FastSpeed),
		},
	}
}

// EnergyParams configures the energy and reproduction system.
type EnergyParams struct {
	Enabled        bool
	Width, Height  float32
	Boundary       BoundaryMode
	FeedRate       float32
	Decay          float32
	ReproThreshold float32
	DeathThreshold float32
	ChildShare     float32
	SpawnOffset    float32
	GeneSigma      float32
	FoodSpawnRate  float32
	FoodEnergy     float32
}

// EnergyParamsFrom builds energy parameters from the loaded config.
func EnergyParamsFrom(cfg *config.Config) EnergyParams {
	e := cfg.Energy
	return EnergyParams{
		Enabled:        e.Enabled,
		Width:          cfg.Derived.WorldW32,
		Height:         cfg.Derived.WorldH32,
		Boundary:       ParseBoundary(cfg.Physics.Boundary),
		FeedRate:       float32(e.FeedRate),
		Decay:          float32(e.Decay),
		ReproThreshold: float32(e.ReproThreshold),
		DeathThreshold: float32(e.DeathThreshold),
		ChildShare:     float32(e.ChildShare),
		SpawnOffset:    float32(e.SpawnOffset),
		GeneSigma:      float32(e.GeneSigma),
		FoodSpawnRate:  float32(cfg.Food.SpawnRate),
		FoodEnergy:     float32(cfg.Food.Energy),
	}
}

// MutationParams configures gene drift.
type MutationParams struct {
	Types          int // current type count; slots with other tags are skipped
	Rate           float32
	EntropyGain    float32
	MaxDelta       float32
	SampleFraction float32
}

// MutationParamsFrom builds mutation parameters from the loaded config.
func MutationParamsFrom(cfg *config.Config) MutationParams {
	m := cfg.Mutation
	return MutationParams{
		Types:          cfg.World.Types,
		Rate:           float32(m.Rate),
		EntropyGain:    float32(m.EntropyGain),
		MaxDelta:       float32(m.MaxDelta),
		SampleFraction: float32(m.SampleFraction),
	}
}
