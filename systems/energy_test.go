package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/rng"
)

func testEnergyParams() EnergyParams {
	p := EnergyParamsFrom(config.Cfg())
	p.Enabled = true
	p.Width, p.Height = 400, 300
	return p
}

func TestEnergyDisabledNoOp(t *testing.T) {
	p := testEnergyParams()
	p.Enabled = false
	ps := randomSet(20, 20, 2, 400, 300, 1)
	before := ps.Clone()

	res := NewEnergySystem().Step(ps, nil, nil, rng.New(1), p, testDT)

	if res != (EnergyResult{}) || ps.Count != before.Count {
		t.Fatalf("disabled system changed state: %+v", res)
	}
	for i := 0; i < ps.Count; i++ {
		if ps.Energy[i] != before.Energy[i] || ps.Age[i] != before.Age[i] {
			t.Fatalf("slot %d changed", i)
		}
	}
}

func TestEnergyFeedAndDecay(t *testing.T) {
	p := testEnergyParams()
	p.FeedRate = 1
	p.Decay = 0.5
	p.ReproThreshold = 100

	ps := components.NewParticleSet(2)
	ps.Add(components.Particle{X: 10, Y: 10, Type: 0, Energy: 1})
	ps.Add(components.Particle{X: 20, Y: 10, Type: 0, Energy: 1})
	feed := []float32{2, 0}

	NewEnergySystem().Step(ps, feed, nil, rng.New(1), p, 0.1)

	// Default nutrient reading is 0.5, so gain = 2 * 1 * (0.5+0.5) * 0.1
	if want := float32(1 + 0.2 - 0.05); math.Abs(float64(ps.Energy[0]-want)) > 1e-5 {
		t.Errorf("fed energy = %f, want %f", ps.Energy[0], want)
	}
	if want := float32(0.95); math.Abs(float64(ps.Energy[1]-want)) > 1e-5 {
		t.Errorf("unfed energy = %f, want %f", ps.Energy[1], want)
	}
	if math.Abs(float64(ps.Age[0]-0.1)) > 1e-6 {
		t.Errorf("age = %f, want 0.1", ps.Age[0])
	}
}

func TestReproductionSplitsEnergy(t *testing.T) {
	p := testEnergyParams()
	p.Decay = 0
	p.ReproThreshold = 2
	p.ChildShare = 0.25
	p.GeneSigma = 0.5

	ps := components.NewParticleSet(4)
	ps.Add(components.Particle{X: 100, Y: 100, Type: 1, Energy: 4, Genes: [4]float32{0, 1, 0.5, 0.5}})

	res := NewEnergySystem().Step(ps, nil, nil, rng.New(3), p, testDT)

	if res.Births != 1 || ps.Count != 2 {
		t.Fatalf("births = %d count = %d, want 1 and 2", res.Births, ps.Count)
	}
	if ps.Energy[0] != 3 || ps.Energy[1] != 1 {
		t.Errorf("energy split = %f/%f, want 3/1", ps.Energy[0], ps.Energy[1])
	}
	if ps.Type[1] != 1 || ps.Age[1] != 0 {
		t.Errorf("child type=%d age=%f", ps.Type[1], ps.Age[1])
	}
	dx, dy := ToroidalDelta(ps.X[0], ps.Y[0], ps.X[1], ps.Y[1], p.Width, p.Height)
	if d := math.Hypot(float64(dx), float64(dy)); math.Abs(d-float64(p.SpawnOffset)) > 1e-3 {
		t.Errorf("child offset = %f, want %f", d, p.SpawnOffset)
	}
	for g := 0; g < components.NumGenes; g++ {
		if v := ps.Genes[g][1]; v < 0 || v > 1 {
			t.Errorf("child gene %d = %f outside [0,1]", g, v)
		}
	}
}

func TestReproductionRefusedWhenFull(t *testing.T) {
	p := testEnergyParams()
	p.Decay = 0
	p.ReproThreshold = 1

	ps := components.NewParticleSet(3)
	for i := 0; i < 3; i++ {
		ps.Add(components.Particle{X: float32(10 * i), Y: 10, Type: 0, Energy: 5})
	}

	res := NewEnergySystem().Step(ps, nil, nil, rng.New(1), p, testDT)

	if res.Births != 0 || res.Refused != 3 {
		t.Errorf("births=%d refused=%d, want 0 and 3", res.Births, res.Refused)
	}
	if ps.Count > ps.Max {
		t.Fatalf("count %d exceeds capacity %d", ps.Count, ps.Max)
	}
	for i := 0; i < ps.Count; i++ {
		if ps.Energy[i] != 5 {
			t.Errorf("refused parent %d paid energy: %f", i, ps.Energy[i])
		}
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	p := testEnergyParams()
	p.Decay = 0
	p.FeedRate = 10
	p.ReproThreshold = 1.5
	p.ChildShare = 0.5

	ps := randomSet(8, 64, 2, p.Width, p.Height, 5)
	feed := make([]float32, ps.Max)
	for i := range feed {
		feed[i] = 5
	}
	sys := NewEnergySystem()
	r := rng.New(5)
	for step := 0; step < 300; step++ {
		sys.Step(ps, feed, nil, r, p, testDT)
		if ps.Count > ps.Max {
			t.Fatalf("step %d: count %d > max %d", step, ps.Count, ps.Max)
		}
	}
	if ps.Count != ps.Max {
		t.Errorf("population did not saturate: %d/%d", ps.Count, ps.Max)
	}
}

func TestExtinctionWithoutFeed(t *testing.T) {
	p := testEnergyParams()
	p.FeedRate = 0
	p.Decay = 0.5
	p.DeathThreshold = 0

	ps := randomSet(100, 100, 2, p.Width, p.Height, 8)
	for i := 0; i < ps.Count; i++ {
		ps.Energy[i] = 1 + float32(i)*0.01
	}
	feed := make([]float32, ps.Max)
	for i := range feed {
		feed[i] = 3 // ignored at zero feed rate
	}

	sys := NewEnergySystem()
	r := rng.New(8)
	// Max energy 1.99 at 0.5/s needs under 4 s of sim time
	dt := float64(testDT)
	bound := int(math.Ceil(4.5 / dt))
	prev := ps.Count
	deaths := 0
	for step := 0; step < bound && ps.Count > 0; step++ {
		res := sys.Step(ps, feed, nil, r, p, testDT)
		if ps.Count > prev {
			t.Fatalf("step %d: population grew %d -> %d", step, prev, ps.Count)
		}
		deaths += res.Deaths
		prev = ps.Count
	}
	if ps.Count != 0 {
		t.Fatalf("population %d after %d steps, want 0", ps.Count, bound)
	}
	if deaths != 100 {
		t.Errorf("deaths = %d, want 100", deaths)
	}
}

func TestEatenFoodIsNotADeath(t *testing.T) {
	p := testEnergyParams()
	p.Decay = 0

	ps := components.NewParticleSet(4)
	ps.Add(components.Particle{X: 1, Y: 1, Type: components.FoodType, Energy: 0})
	ps.Add(components.Particle{X: 2, Y: 2, Type: 0, Energy: 1})
	ps.Add(components.Particle{X: 3, Y: 3, Type: components.FoodType, Energy: 0.5})

	res := NewEnergySystem().Step(ps, nil, nil, rng.New(1), p, testDT)

	if res.FoodEaten != 1 || res.Deaths != 0 {
		t.Errorf("food eaten=%d deaths=%d, want 1 and 0", res.FoodEaten, res.Deaths)
	}
	if ps.Count != 2 {
		t.Errorf("count = %d, want 2", ps.Count)
	}
}

func TestFoodSpawnRate(t *testing.T) {
	p := testEnergyParams()
	p.Decay = 0
	p.FoodSpawnRate = 30 // one every other step at 60 Hz

	ps := components.NewParticleSet(100)
	sys := NewEnergySystem()
	r := rng.New(2)
	spawned := 0
	for i := 0; i < 60; i++ {
		spawned += sys.Step(ps, nil, nil, r, p, testDT).FoodSpawn
	}
	if spawned < 29 || spawned > 30 {
		t.Errorf("spawned %d food in 1s, want ~30", spawned)
	}
	for i := 0; i < ps.Count; i++ {
		if !ps.IsFood(i) {
			t.Fatalf("slot %d is not food", i)
		}
	}
}
