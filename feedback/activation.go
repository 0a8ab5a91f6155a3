package feedback

import (
	"math"

	"github.com/pthm-cable/emergent/config"
)

// Activations are the smoothed control signals derived from metric
// deadzones. Disorder and Clumping are signed in [-1, 1]; the rest are in [0, 1].
type Activations struct {
	Disorder    float64 `json:"disorder" csv:"disorder"`
	Clumping    float64 `json:"clumping" csv:"clumping"`
	Agitation   float64 `json:"agitation" csv:"agitation"`
	Monoculture float64 `json:"monoculture" csv:"monoculture"`
	Stasis      float64 `json:"stasis" csv:"stasis"`
}

// deadzone is zero inside [band.Low, band.High], rises linearly to 1 as v
// reaches 1 above the band and falls to -1 as v reaches 0 below it.
func deadzone(v float64, band config.Band) float64 {
	switch {
	case v > band.High:
		if band.High >= 1 {
			return 0
		}
		return clampSigned((v - band.High) / (1 - band.High))
	case v < band.Low:
		if band.Low <= 0 {
			return 0
		}
		return clampSigned(-(band.Low - v) / band.Low)
	}
	return 0
}

// targetActivations maps raw metrics onto unsmoothed activations.
func targetActivations(m Metrics, b config.Bands) Activations {
	return Activations{
		Disorder:    deadzone(m.Entropy, b.Entropy),
		Clumping:    deadzone(m.Clustering, b.Clustering),
		Agitation:   math.Max(0, deadzone(m.Conflict, b.Conflict)),
		Monoculture: math.Max(0, -deadzone(m.Diversity, b.Diversity)),
		Stasis:      math.Max(0, deadzone(m.Stagnation, b.Stagnation)),
	}
}

// smooth blends target into prev. inertia 0 takes the target outright,
// inertia 1 never moves.
func smooth(prev, target Activations, inertia float64) Activations {
	k := clamp01(inertia)
	mix := func(p, t float64) float64 { return k*p + (1-k)*t }
	return Activations{
		Disorder:    mix(prev.Disorder, target.Disorder),
		Clumping:    mix(prev.Clumping, target.Clumping),
		Agitation:   mix(prev.Agitation, target.Agitation),
		Monoculture: mix(prev.Monoculture, target.Monoculture),
		Stasis:      mix(prev.Stasis, target.Stasis),
	}
}

// Regime is one of the four qualitative phases.
type Regime int

const (
	Expansion Regime = iota
	Consolidation
	Selection
	Renewal
)

var regimeNames = [...]string{"expansion", "consolidation", "selection", "renewal"}

func (r Regime) String() string {
	if r < 0 || int(r) >= len(regimeNames) {
		return "unknown"
	}
	return regimeNames[r]
}

// RegimeOf labels a phase scalar by quartile.
func RegimeOf(phase float64) Regime {
	q := int(phase * 4)
	if q < 0 {
		q = 0
	}
	if q > 3 {
		q = 3
	}
	return Regime(q)
}

// advancePhase moves the phase scalar by one substep and wraps it to [0, 1).
// Stagnation accelerates the cycle and conflict brakes it.
func advancePhase(phase, dt float64, cfg config.FeedbackConfig, last Metrics) float64 {
	rate := cfg.PhaseRate * (1 + cfg.StagnationAccel*last.Stagnation) * (1 - cfg.ConflictBrake*last.Conflict)
	if !(rate > 0) {
		return phase
	}
	phase += dt * rate
	phase -= math.Floor(phase)
	if !(phase >= 0 && phase < 1) {
		phase = 0
	}
	return phase
}

func clampSigned(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}
