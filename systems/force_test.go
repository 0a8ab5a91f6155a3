package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/matrix"
	"github.com/pthm-cable/emergent/rng"
)

func init() {
	config.MustInit("")
}

const testDT = float32(1.0 / 60.0)

func testForceParams() ForceParams {
	p := ForceParamsFrom(config.Cfg())
	p.Width, p.Height = 400, 300
	return p
}

// randomSet fills a set of n particles over a w×h world with types in [0, types).
func randomSet(n, capacity, types int, w, h float32, seed int64) *components.ParticleSet {
	r := rng.New(seed)
	ps := components.NewParticleSet(capacity)
	for i := 0; i < n; i++ {
		ps.Add(components.Particle{
			X:      float32(r.Range(0, float64(w))),
			Y:      float32(r.Range(0, float64(h))),
			VX:     float32(r.Range(-50, 50)),
			VY:     float32(r.Range(-50, 50)),
			Type:   int32(r.Int(0, types)),
			Genes:  [components.NumGenes]float32{0.5, 0.5, 0.5, 0.5},
			Energy: 1,
			Size:   1,
		})
	}
	return ps
}

func TestClassicForceShape(t *testing.T) {
	const beta = 0.3
	tests := []struct {
		name string
		r, a float32
		want float32
	}{
		{"touching", 0, 1, -1},
		{"half core", 0.15, 1, -0.5},
		{"core edge", beta, 1, 0},
		{"peak", (1 + beta) / 2, 0.8, 0.8},
		{"peak repel", (1 + beta) / 2, -0.5, -0.5},
		{"edge", 1, 1, 0},
	}
	for _, tt := range tests {
		got := classicForce(tt.r, tt.a, beta)
		if math.Abs(float64(got-tt.want)) > 1e-5 {
			t.Errorf("%s: classicForce(%f, %f) = %f, want %f", tt.name, tt.r, tt.a, got, tt.want)
		}
	}
}

func TestBoundaryKeepsPositionsInWorld(t *testing.T) {
	for _, mode := range []BoundaryMode{BoundaryWrap, BoundaryBounce} {
		t.Run(mode.String(), func(t *testing.T) {
			p := testForceParams()
			p.Boundary = mode
			p.MaxSpeed = 5000 // large steps cross the edge often
			p.Drag = 0

			m := matrix.New(3, 40, 1)
			m.Randomize(rng.New(1))
			ps := randomSet(200, 200, 3, p.Width, p.Height, 2)
			for i := 0; i < ps.Count; i++ {
				ps.VX[i] *= 40
				ps.VY[i] *= 40
			}

			k := NewForceKernel(p.Width, p.Height)
			for tick := uint64(0); tick < 200; tick++ {
				k.Step(ps, m, nil, p, tick, testDT)
				for i := 0; i < ps.Count; i++ {
					x, y := ps.X[i], ps.Y[i]
					if mode == BoundaryWrap && (x < 0 || x >= p.Width || y < 0 || y >= p.Height) {
						t.Fatalf("tick %d: slot %d at (%f, %f) outside [0,%f)x[0,%f)", tick, i, x, y, p.Width, p.Height)
					}
					if mode == BoundaryBounce && (x < 0 || x > p.Width || y < 0 || y > p.Height) {
						t.Fatalf("tick %d: slot %d at (%f, %f) outside [0,%f]x[0,%f]", tick, i, x, y, p.Width, p.Height)
					}
				}
			}
		})
	}
}

func TestKernelDeterministic(t *testing.T) {
	p := testForceParams()
	m := matrix.New(4, 50, 1)
	m.Randomize(rng.New(5))

	run := func() *components.ParticleSet {
		ps := randomSet(300, 300, 4, p.Width, p.Height, 9)
		env := &field.Environment{
			Layers: field.NewLayers(config.Cfg().Fields.Layers, p.Width, p.Height),
		}
		k := NewForceKernel(p.Width, p.Height)
		for tick := uint64(0); tick < 150; tick++ {
			k.Step(ps, m, env, p, tick, testDT)
		}
		return ps
	}

	a, b := run(), run()
	for i := 0; i < a.Count; i++ {
		if a.X[i] != b.X[i] || a.Y[i] != b.Y[i] || a.VX[i] != b.VX[i] || a.VY[i] != b.VY[i] {
			t.Fatalf("slot %d diverged: (%f,%f) vs (%f,%f)", i, a.X[i], a.Y[i], b.X[i], b.Y[i])
		}
	}
}

func TestInvalidTypeSkipped(t *testing.T) {
	p := testForceParams()
	p.Noise = 0
	m := matrix.New(2, 50, 1)
	m.Set(0, 0, 1)

	ps := components.NewParticleSet(4)
	ps.Add(components.Particle{X: 100, Y: 100, Type: 0, Size: 1})
	ps.Add(components.Particle{X: 110, Y: 100, Type: 7, Size: 1}) // not in a 2-type matrix

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)

	if ps.X[1] != 110 || ps.Y[1] != 100 || ps.VX[1] != 0 {
		t.Errorf("invalid-type particle moved to (%f, %f)", ps.X[1], ps.Y[1])
	}
	if ps.VX[0] != 0 || ps.VY[0] != 0 {
		t.Errorf("invalid-type particle acted as a force source: v=(%f, %f)", ps.VX[0], ps.VY[0])
	}
}

func TestMissingMatrixEntryIsNoInteraction(t *testing.T) {
	p := testForceParams()
	p.Noise = 0
	m := matrix.New(2, 50, 1)
	m.Set(0, 1, 1)
	m.SetRadius(0, 1, 0)

	ps := components.NewParticleSet(2)
	ps.Add(components.Particle{X: 100, Y: 100, Type: 0, Size: 1})
	ps.Add(components.Particle{X: 130, Y: 100, Type: 1, Size: 1})

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)

	if ps.VX[0] != 0 {
		t.Errorf("zero-radius pair produced force: vx=%f", ps.VX[0])
	}
}

func TestAttractionPullsTogether(t *testing.T) {
	p := testForceParams()
	p.Noise = 0
	m := matrix.New(1, 60, 1)
	m.Set(0, 0, 1)

	ps := components.NewParticleSet(2)
	ps.Add(components.Particle{X: 100, Y: 100, Type: 0, Size: 1})
	ps.Add(components.Particle{X: 140, Y: 100, Type: 0, Size: 1})

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)

	if !(ps.VX[0] > 0 && ps.VX[1] < 0) {
		t.Errorf("attraction did not pull together: vx0=%f vx1=%f", ps.VX[0], ps.VX[1])
	}
	st := k.Stats()
	if st.Interactions != 2 || st.NeighborChecks != 2 {
		t.Errorf("stats = %+v, want 2 interactions and 2 checks", st)
	}
	if k.Feed()[0] <= 0 {
		t.Error("positive interaction did not feed")
	}
}

func TestWrapInteractsAcrossEdge(t *testing.T) {
	p := testForceParams()
	p.Noise = 0
	m := matrix.New(1, 60, 1)
	m.Set(0, 0, 1)

	ps := components.NewParticleSet(2)
	ps.Add(components.Particle{X: 5, Y: 100, Type: 0, Size: 1})
	ps.Add(components.Particle{X: p.Width - 25, Y: 100, Type: 0, Size: 1})

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)

	// Slot 0 is pulled left across the seam
	if !(ps.VX[0] < 0) {
		t.Errorf("no toroidal attraction: vx0=%f", ps.VX[0])
	}
}

func TestFoodNeverMovesAndDecays(t *testing.T) {
	p := testForceParams()
	p.FoodDecay = 1
	p.FoodReach = 10
	p.FoodBite = 0.6
	m := matrix.New(1, 60, 1)

	ps := components.NewParticleSet(2)
	ps.Add(components.Particle{X: 100, Y: 100, Type: components.FoodType, Energy: 1})
	ps.Add(components.Particle{X: 105, Y: 100, Type: 0, Size: 1})

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)

	if ps.X[0] != 100 || ps.Y[0] != 100 {
		t.Errorf("food moved to (%f, %f)", ps.X[0], ps.Y[0])
	}
	bite := p.FoodBite * testDT
	want := (1 - bite) * float32(math.Exp(-float64(testDT)))
	if math.Abs(float64(ps.Energy[0]-want)) > 1e-5 {
		t.Errorf("food energy = %f, want %f", ps.Energy[0], want)
	}
	if k.Stats().FeedEvents != 1 {
		t.Errorf("feed events = %d, want 1", k.Stats().FeedEvents)
	}
	if math.Abs(float64(k.Feed()[1]-p.FoodBite)) > 1e-4 {
		t.Errorf("feed = %f, want %f", k.Feed()[1], p.FoodBite)
	}
}

func TestSaturationGuard(t *testing.T) {
	p := testForceParams()
	m := matrix.New(1, 60, 1)

	ps := components.NewParticleSet(2)
	ps.Add(components.Particle{X: 100, Y: 100, VX: float32(math.NaN()), VY: float32(math.Inf(1)), Type: 0, Size: 1})

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)

	if !finite32(ps.X[0]) || !finite32(ps.Y[0]) || !finite32(ps.VX[0]) || !finite32(ps.VY[0]) {
		t.Errorf("non-finite state survived: %+v", ps.Get(0))
	}
}

func TestStrongInteractionsDeposit(t *testing.T) {
	cfg := config.Cfg()
	p := testForceParams()
	p.Noise = 0
	p.Deposit.Strong = 0.1
	p.Deposit.Cap = 1

	m := matrix.New(1, 60, 1)
	ps := components.NewParticleSet(2)
	// Inside the core: strong repulsion
	ps.Add(components.Particle{X: 100, Y: 100, Type: 0, Size: 1})
	ps.Add(components.Particle{X: 102, Y: 100, Type: 0, Size: 1})

	env := &field.Environment{
		Layers:    field.NewLayers(cfg.Fields.Layers, p.Width, p.Height),
		Recursive: field.NewRecursive(cfg.Fields.Recursive, p.Width, p.Height),
	}
	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, env, p, 0, testDT)

	if env.Layers.Sum(field.Tension) <= 0 {
		t.Error("repulsion did not deposit tension")
	}
	if env.Recursive.Sum(field.Stress) <= 0 && cfg.Fields.Recursive.Channels[field.Stress].Delay == 0 {
		t.Error("repulsion did not deposit stress")
	}
	if k.Stats().Deposits == 0 {
		t.Error("deposit counter not incremented")
	}
}

func TestRebuildOnCapacityGrowth(t *testing.T) {
	p := testForceParams()
	m := matrix.New(1, 40, 1)
	ps := randomSet(10, 10, 1, p.Width, p.Height, 4)

	k := NewForceKernel(p.Width, p.Height)
	k.Step(ps, m, nil, p, 0, testDT)
	if k.Stats().Rebuilds != 1 {
		t.Fatalf("first step rebuilds = %d, want 1", k.Stats().Rebuilds)
	}
	k.Step(ps, m, nil, p, 1, testDT)
	if k.Stats().Rebuilds != 0 {
		t.Fatalf("steady step rebuilt the grid")
	}

	ps.Grow(40)
	k.Step(ps, m, nil, p, 2, testDT)
	if k.Stats().Rebuilds != 1 {
		t.Errorf("capacity growth did not rebuild")
	}

	k.Invalidate()
	k.Step(ps, m, nil, p, 3, testDT)
	if k.Stats().Rebuilds != 1 {
		t.Errorf("invalidate did not rebuild")
	}
}
