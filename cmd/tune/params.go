package main

import (
	"github.com/pthm-cable/emergent/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of feedback gains.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "strength", Path: "feedback.strength", Min: 0.0, Max: 3.0, Default: 1.0},
			{Name: "chaos_clamp", Path: "feedback.chaos_clamp", Min: 0.1, Max: 2.0, Default: 1.0},
			{Name: "inertia", Path: "feedback.inertia", Min: 0.0, Max: 0.98, Default: 0.85},
			{Name: "phase_rate", Path: "feedback.phase_rate", Min: 0.005, Max: 0.1, Default: 0.02},
			{Name: "stagnation_accel", Path: "feedback.stagnation_accel", Min: 0.0, Max: 3.0, Default: 1.5},
			{Name: "conflict_brake", Path: "feedback.conflict_brake", Min: 0.0, Max: 1.0, Default: 0.6},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes clamped values into cfg. Order must match Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	fb := &cfg.Feedback
	fb.Enabled = true
	fb.Strength = clamped[0]
	fb.ChaosClamp = clamped[1]
	fb.Inertia = clamped[2]
	fb.PhaseRate = clamped[3]
	fb.StagnationAccel = clamped[4]
	fb.ConflictBrake = clamped[5]
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	fb := cfg.Feedback
	return []float64{
		fb.Strength,
		fb.ChaosClamp,
		fb.Inertia,
		fb.PhaseRate,
		fb.StagnationAccel,
		fb.ConflictBrake,
	}
}
