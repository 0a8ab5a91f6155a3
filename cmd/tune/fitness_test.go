package main

import (
	"testing"

	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/telemetry"
)

func init() {
	config.MustInit("")
}

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()
	def := pv.ExtractFromConfig(cfg)
	if len(def) != pv.Dim() {
		t.Fatalf("extracted %d values for %d specs", len(def), pv.Dim())
	}

	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if d := back[i] - def[i]; d > 1e-9 || d < -1e-9 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, def[i], back[i])
		}
	}

	out := make([]float64, pv.Dim())
	for i, s := range pv.Specs {
		out[i] = s.Max + 10
	}
	pv.ApplyToConfig(cfg, out)
	got := pv.ExtractFromConfig(cfg)
	for i, s := range pv.Specs {
		if got[i] != s.Max {
			t.Errorf("%s = %v, want clamp to %v", s.Name, got[i], s.Max)
		}
	}
}

func TestComputeQuality(t *testing.T) {
	fe := NewFitnessEvaluator(NewParamVector(), 100, []int64{1}, config.Default())

	steady := make([]telemetry.WindowStats, 6)
	for i := range steady {
		steady[i] = telemetry.WindowStats{Diversity: 1, Health: 0.8}
	}
	good := fe.computeQuality(&runResult{ticks: 100, windowStats: steady})
	tripped := fe.computeQuality(&runResult{ticks: 100, windowStats: steady, valveTrips: 5})
	died := fe.computeQuality(&runResult{ticks: 10})

	if good <= tripped {
		t.Errorf("valve trips did not lower quality: %v vs %v", good, tripped)
	}
	if died >= good {
		t.Errorf("early death scored %v against %v", died, good)
	}
	for _, q := range []float64{good, tripped, died} {
		if q < 0 || q > 1 {
			t.Errorf("quality %v outside [0, 1]", q)
		}
	}
}
