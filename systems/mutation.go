package systems

import (
	"math"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/rng"
)

// MutateGenes drifts the genes of a sampled subset of particles. The trial
// rate and step size both grow with the local entropy reading. Returns the
// number of genes changed.
//
// Draw order per sample: slot, trial, and on success gene index then delta.
func MutateGenes(ps *components.ParticleSet, env *field.Environment, r rng.Source, p MutationParams) int {
	if ps == nil || ps.Count == 0 || !(p.SampleFraction > 0) {
		return 0
	}
	samples := int(math.Ceil(float64(ps.Count) * float64(clamp01(p.SampleFraction))))

	mutations := 0
	for s := 0; s < samples; s++ {
		i := r.Int(0, ps.Count)
		if !ps.ValidType(i, p.Types) {
			continue
		}
		entropy := env.Read(ps.X[i], ps.Y[i]).Entropy
		if r.Next() >= float64(p.Rate+p.EntropyGain*entropy) {
			continue
		}
		g := r.Int(0, components.NumGenes)
		scale := clamp01(0.25 + 0.75*entropy)
		delta := float32(r.Range(-1, 1)) * p.MaxDelta * scale
		ps.Genes[g][i] = clamp01(ps.Genes[g][i] + delta)
		mutations++
	}
	return mutations
}
