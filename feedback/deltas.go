package feedback

import (
	"math"

	"github.com/pthm-cable/emergent/systems"
)

// maxLimit keeps every modulated parameter's sign even at extreme gains.
const maxLimit = 0.9

// Deltas are fractional parameter adjustments: a delta of 0.1 raises the
// parameter by 10% of its base value for one substep.
type Deltas struct {
	Force    float64 `json:"force" csv:"d_force"`
	Drag     float64 `json:"drag" csv:"d_drag"`
	Noise    float64 `json:"noise" csv:"d_noise"`
	Beta     float64 `json:"beta" csv:"d_beta"`
	Radius   float64 `json:"radius" csv:"d_radius"`
	Mutation float64 `json:"mutation" csv:"d_mutation"`
}

// Limit returns the bound on every delta's magnitude.
func Limit(strength, chaosClamp float64) float64 {
	l := math.Abs(strength*chaosClamp) * 0.20
	if !(l <= maxLimit) {
		l = maxLimit
	}
	return l
}

// computeDeltas mixes activations with the phase swing. Each raw term is
// roughly in [-1, 1] and is scaled by the limit after clamping, so every
// delta satisfies |delta| <= limit.
func computeDeltas(a Activations, phase, limit float64) Deltas {
	sin, cos := math.Sincos(2 * math.Pi * phase)
	regime := RegimeOf(phase)

	var renewal float64
	if regime == Renewal {
		renewal = 0.3
	}
	raw := Deltas{
		Force:    -0.5*a.Agitation + 0.3*a.Stasis - 0.3*a.Disorder + 0.25*sin,
		Drag:     0.6*a.Agitation - 0.3*a.Stasis + 0.2*a.Disorder,
		Noise:    0.5*a.Stasis + 0.4*a.Monoculture - 0.3*a.Clumping - 0.2*a.Agitation + 0.2*cos,
		Beta:     0.4*a.Clumping - 0.2*a.Disorder + 0.15*cos,
		Radius:   -0.3*a.Clumping + 0.3*a.Disorder + 0.15*sin,
		Mutation: 0.6*a.Monoculture + 0.4*a.Stasis + renewal,
	}
	bound := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return clampSigned(v) * limit
	}
	return Deltas{
		Force:    bound(raw.Force),
		Drag:     bound(raw.Drag),
		Noise:    bound(raw.Noise),
		Beta:     bound(raw.Beta),
		Radius:   bound(raw.Radius),
		Mutation: bound(raw.Mutation),
	}
}

// IsZero reports whether every delta is exactly zero.
func (d Deltas) IsZero() bool { return d == Deltas{} }

// ApplyForce returns a modulated copy of p. p itself is never changed.
func (d Deltas) ApplyForce(p systems.ForceParams) systems.ForceParams {
	if d.IsZero() {
		return p
	}
	p.ForceScale = scale(p.ForceScale, d.Force)
	p.Drag = scale(p.Drag, d.Drag)
	p.Noise = scale(p.Noise, d.Noise)
	p.Beta = scale(p.Beta, d.Beta)
	p.RadiusScale = scale(p.RadiusScale, d.Radius)
	return p
}

// ApplyMutation returns a modulated copy of p.
func (d Deltas) ApplyMutation(p systems.MutationParams) systems.MutationParams {
	if d.Mutation == 0 {
		return p
	}
	p.Rate = scale(p.Rate, d.Mutation)
	p.EntropyGain = scale(p.EntropyGain, d.Mutation)
	return p
}

// scale applies a fractional delta, falling back to the base value if the
// product is not finite.
func scale(base float32, delta float64) float32 {
	v := float32(float64(base) * (1 + delta))
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return base
	}
	return v
}
