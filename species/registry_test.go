package species

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
)

func init() {
	config.MustInit("")
}

func testConfig() config.SpeciesConfig {
	cfg := config.Cfg().Species
	cfg.Enabled = true
	cfg.MinDistance = 0.15
	cfg.MinVolatility = 1 // unreachable without fields
	cfg.MinScarcity = 0.4 // the default signal has scarcity 0.5
	cfg.SampleSize = 64
	return cfg
}

// drifted returns n particles whose genes cluster around center.
func drifted(n int, center [components.NumGenes]float32, seed int64) *components.ParticleSet {
	r := rand.New(rand.NewSource(seed))
	ps := components.NewParticleSet(n)
	for i := 0; i < n; i++ {
		p := components.Particle{X: float32(i), Y: float32(i), Type: 0}
		for g := range p.Genes {
			p.Genes[g] = center[g] + float32(r.Float64()-0.5)*0.02
		}
		ps.Add(p)
	}
	return ps
}

func distance(a, b [components.NumGenes]float32) float64 {
	var s float64
	for g := range a {
		d := float64(a[g] - b[g])
		s += d * d
	}
	return math.Sqrt(s)
}

func TestNoTwoArchetypesWithinMinDistance(t *testing.T) {
	reg := NewRegistry(testConfig())
	r := rand.New(rand.NewSource(1))

	center := [components.NumGenes]float32{0.5, 0.5, 0.5, 0.5}
	for step := 0; step < 200; step++ {
		// Random walk of the population centroid
		for g := range center {
			center[g] = float32(math.Min(1, math.Max(0, float64(center[g])+(r.Float64()-0.5)*0.1)))
		}
		reg.Check(drifted(128, center, int64(step)), nil, 7, float64(step), uint64(step))
	}

	entries := reg.Entries()
	if len(entries) < 2 {
		t.Fatalf("only %d archetypes minted during a long drift", len(entries))
	}
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if d := distance(entries[i].Centroid, entries[j].Centroid); d <= testConfig().MinDistance {
				t.Fatalf("archetypes %d and %d only %f apart", i, j, d)
			}
		}
	}
}

func TestRepeatedCheckMintsOnce(t *testing.T) {
	reg := NewRegistry(testConfig())
	ps := drifted(100, [components.NumGenes]float32{0.2, 0.4, 0.6, 0.8}, 1)

	if _, ok := reg.Check(ps, nil, 1, 0, 0); !ok {
		t.Fatal("first check did not mint")
	}
	for i := 1; i < 10; i++ {
		if _, ok := reg.Check(ps, nil, 1, float64(i), uint64(i)); ok {
			t.Fatalf("check %d minted a duplicate", i)
		}
	}
	if reg.Len() != 1 {
		t.Errorf("len = %d, want 1", reg.Len())
	}
}

func TestSignalGate(t *testing.T) {
	cfg := testConfig()
	cfg.MinScarcity = 0.9
	reg := NewRegistry(cfg)
	ps := drifted(100, [components.NumGenes]float32{0.5, 0.5, 0.5, 0.5}, 1)

	if _, ok := reg.Check(ps, nil, 1, 0, 0); ok {
		t.Error("minted without enough volatility or scarcity")
	}
}

func TestDisabledNeverMints(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	reg := NewRegistry(cfg)
	if _, ok := reg.Check(drifted(50, [components.NumGenes]float32{}, 1), nil, 1, 0, 0); ok {
		t.Error("disabled registry minted")
	}
}

func TestEmptyOrFoodOnlyPopulation(t *testing.T) {
	reg := NewRegistry(testConfig())
	if _, ok := reg.Check(components.NewParticleSet(4), nil, 1, 0, 0); ok {
		t.Error("minted from an empty set")
	}
	food := components.NewParticleSet(4)
	food.Add(components.Particle{Type: components.FoodType})
	if _, ok := reg.Check(food, nil, 1, 0, 0); ok {
		t.Error("minted from food")
	}
}

func TestIdentityDeterministic(t *testing.T) {
	center := [components.NumGenes]float32{0.1, 0.9, 0.3, 0.7}
	a := NewRegistry(testConfig())
	b := NewRegistry(testConfig())
	ea, _ := a.Check(drifted(80, center, 3), nil, 42, 12.5, 750)
	eb, _ := b.Check(drifted(80, center, 3), nil, 42, 12.5, 750)

	if ea.ID != eb.ID || ea.Name != eb.Name || ea.Sigil != eb.Sigil {
		t.Errorf("identities differ: %+v vs %+v", ea, eb)
	}
	if ea.ID.Version() != 5 {
		t.Errorf("ID version = %d, want 5", ea.ID.Version())
	}
	if ea.SimTime != 12.5 || ea.Tick != 750 || ea.Index != 0 {
		t.Errorf("origin not recorded: %+v", ea)
	}

	c := NewRegistry(testConfig())
	ec, _ := c.Check(drifted(80, center, 3), nil, 43, 12.5, 750)
	if ec.ID == ea.ID {
		t.Error("different seeds gave the same ID")
	}
}

func TestRestoreKeepsOrderAndGuards(t *testing.T) {
	reg := NewRegistry(testConfig())
	centers := [][components.NumGenes]float32{
		{0.1, 0.1, 0.1, 0.1},
		{0.9, 0.9, 0.9, 0.9},
		{0.1, 0.9, 0.1, 0.9},
	}
	for i, c := range centers {
		if _, ok := reg.Check(drifted(50, c, int64(i)), nil, 5, float64(i), uint64(i)); !ok {
			t.Fatalf("center %d not minted", i)
		}
	}
	saved := reg.Entries()

	other := NewRegistry(testConfig())
	other.Restore(saved)
	got := other.Entries()
	if len(got) != len(saved) {
		t.Fatalf("restored %d entries, want %d", len(got), len(saved))
	}
	for i := range saved {
		if got[i] != saved[i] {
			t.Errorf("entry %d differs after restore", i)
		}
	}

	// Restored centroids still block duplicates
	if _, ok := other.Check(drifted(50, centers[1], 9), nil, 5, 10, 10); ok {
		t.Error("restored registry minted a duplicate")
	}
	if _, d, ok := other.Nearest(centers[2]); !ok || d > 0.05 {
		t.Errorf("nearest distance = %f ok=%v", d, ok)
	}
}
