package sim

import (
	"math"
	"reflect"
	"testing"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/feedback"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/systems"
)

func init() {
	config.MustInit("")
}

// testConfig is a small world with every subsystem switched on.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.Width, cfg.World.Height = 300, 240
	cfg.World.Capacity = 400
	cfg.World.InitialCount = 200
	cfg.World.Types = 4
	cfg.Feedback.Interval = 5
	cfg.Species.IntervalSec = 0.5
	cfg.Food.SpawnRate = 20
	cfg.Scenario.Name = ScenarioFood
	cfg.Finalize()
	return cfg
}

// kernelOnly switches off everything but the force kernel.
func kernelOnly(cfg *config.Config) *config.Config {
	cfg.Fields.Enabled = false
	cfg.Energy.Enabled = false
	cfg.Mutation.SampleFraction = 0
	cfg.Species.Enabled = false
	cfg.Food.SpawnRate = 0
	cfg.Feedback.Enabled = false
	cfg.Finalize()
	return cfg
}

func newLoaded(t *testing.T, cfg *config.Config) *World {
	t.Helper()
	w := NewWorld(cfg)
	if err := LoadScenario(w, cfg.Scenario.Name); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	return w
}

func run(w *World, steps int) {
	dt := w.Config.Derived.DT32
	for i := 0; i < steps; i++ {
		Step(w, dt)
	}
}

func liveSlots(ps *components.ParticleSet) *components.ParticleSet {
	c := components.NewParticleSet(ps.Count)
	for i := 0; i < ps.Count; i++ {
		c.Add(ps.Get(i))
	}
	return c
}

func TestStepDeterministic(t *testing.T) {
	a := newLoaded(t, testConfig())
	b := newLoaded(t, testConfig())
	run(a, 300)
	run(b, 300)

	if !reflect.DeepEqual(liveSlots(a.Particles), liveSlots(b.Particles)) {
		t.Fatal("same seed produced different particles")
	}
	if !reflect.DeepEqual(a.Feedback.State, b.Feedback.State) {
		t.Error("same seed produced different controller state")
	}
	if !reflect.DeepEqual(a.Registry.Entries(), b.Registry.Entries()) {
		t.Error("same seed produced different archetypes")
	}
	if !reflect.DeepEqual(a.Env.Layers.Data, b.Env.Layers.Data) {
		t.Error("same seed produced different fields")
	}

	cfg := testConfig()
	cfg.World.Seed++
	c := newLoaded(t, cfg)
	run(c, 300)
	if reflect.DeepEqual(liveSlots(a.Particles), liveSlots(c.Particles)) {
		t.Error("different seeds produced identical particles")
	}
}

func TestCapacityHoldsUnderReproduction(t *testing.T) {
	cfg := testConfig()
	cfg.World.Capacity = 150
	cfg.World.InitialCount = 100
	cfg.Energy.Initial = 5
	cfg.Energy.ReproThreshold = 1
	cfg.Energy.Decay = 0
	cfg.Energy.ChildShare = 0.1
	w := newLoaded(t, cfg)

	refused := 0
	for i := 0; i < 200; i++ {
		res := Step(w, w.Config.Derived.DT32)
		refused += res.Refused
		if w.Particles.Count > w.Particles.Max {
			t.Fatalf("step %d: count %d exceeds capacity %d", i, w.Particles.Count, w.Particles.Max)
		}
	}
	if refused == 0 {
		t.Error("a full set never refused a reproduction")
	}
}

func TestBoundaryModes(t *testing.T) {
	for _, mode := range []string{"wrap", "bounce"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig()
			cfg.Physics.Boundary = mode
			cfg.Physics.MaxSpeed = 600
			w := newLoaded(t, cfg)
			run(w, 200)

			width, height := w.Force.Width, w.Force.Height
			ps := w.Particles
			for i := 0; i < ps.Count; i++ {
				x, y := ps.X[i], ps.Y[i]
				inside := x >= 0 && y >= 0 && x <= width && y <= height
				if mode == "wrap" {
					inside = inside && x < width && y < height
				}
				if !inside {
					t.Fatalf("particle %d at (%f, %f) outside %fx%f", i, x, y, width, height)
				}
			}
		})
	}
}

// sameTypeFraction is the mean share of same-type neighbors within radius.
func sameTypeFraction(ps *components.ParticleSet, radius, w, h float32) float64 {
	var sum float64
	var counted int
	for i := 0; i < ps.Count; i++ {
		same, all := 0, 0
		for j := 0; j < ps.Count; j++ {
			if i == j {
				continue
			}
			dx, dy := systems.ToroidalDelta(ps.X[i], ps.Y[i], ps.X[j], ps.Y[j], w, h)
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			all++
			if ps.Type[i] == ps.Type[j] {
				same++
			}
		}
		if all > 0 {
			sum += float64(same) / float64(all)
			counted++
		}
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

func TestSegregationScenario(t *testing.T) {
	cfg := kernelOnly(config.Default())
	cfg.World.Width, cfg.World.Height = 200, 200
	cfg.World.Capacity = 100
	cfg.World.InitialCount = 100
	cfg.World.Types = 2
	cfg.Physics.Noise = 0
	cfg.Matrix.Radius = 40
	cfg.Scenario.Name = ScenarioSegregation
	cfg.Finalize()
	w := newLoaded(t, cfg)

	if a := w.Matrix.Base[0][1]; a != -0.3 {
		t.Fatalf("cross attraction = %v", a)
	}
	sampler := feedback.Sampler{CoarseGrid: 8}
	measure := func() (float64, float64) {
		m := sampler.Measure(w.Particles, 2, w.Force.Width, w.Force.Height, w.Force.MaxSpeed)
		return sameTypeFraction(w.Particles, 40, w.Force.Width, w.Force.Height), m.Clustering
	}
	mix0, clust0 := measure()
	run(w, 2000)
	mix1, clust1 := measure()

	if mix1 < 0.7 || mix1 < mix0+0.15 {
		t.Errorf("same-type neighbor share %.3f -> %.3f, types did not segregate", mix0, mix1)
	}
	if clust1 < 0.65 || clust1 <= clust0 {
		t.Errorf("occupancy clustering %.3f -> %.3f did not rise", clust0, clust1)
	}
}

func TestDisabledControllerPassThrough(t *testing.T) {
	cfg := testConfig()
	cfg.Feedback.Enabled = false
	cfg.Finalize()

	withCtl := newLoaded(t, cfg)
	without := newLoaded(t, cfg)
	without.Feedback = nil

	for i := 0; i < 1000; i++ {
		a := Step(withCtl, withCtl.Config.Derived.DT32)
		b := Step(without, without.Config.Derived.DT32)
		if a.Births != b.Births || a.Deaths != b.Deaths || a.Mutations != b.Mutations {
			t.Fatalf("step %d results differ: %+v vs %+v", i, a, b)
		}
		if !withCtl.Feedback.Deltas().IsZero() {
			t.Fatalf("step %d: disabled controller produced deltas", i)
		}
	}
	if !reflect.DeepEqual(liveSlots(withCtl.Particles), liveSlots(without.Particles)) {
		t.Error("disabled controller changed the trajectory")
	}
}

func TestDisabledControllerMatchesBareKernel(t *testing.T) {
	cfg := kernelOnly(testConfig())
	w := newLoaded(t, cfg)

	ps := w.Particles.Clone()
	m := w.Matrix.Clone()
	k := systems.NewForceKernel(w.Force.Width, w.Force.Height)
	p := systems.ForceParamsFrom(w.Config)
	env := &field.Environment{}
	dt := w.Config.Derived.DT32

	for tick := uint64(0); tick < 1000; tick++ {
		k.Step(ps, m, env, p, tick, dt)
		Step(w, dt)
	}
	if !reflect.DeepEqual(ps, w.Particles) {
		t.Error("world with a disabled controller diverged from the bare kernel")
	}
}

func TestFieldsStayClamped(t *testing.T) {
	w := newLoaded(t, testConfig())
	run(w, 400)
	for _, g := range []*field.Grid{w.Env.Layers, w.Env.Recursive, w.Sigil.Grid} {
		for c, data := range g.Data {
			maxV := g.Specs[c].Max
			for i, v := range data {
				if !(v >= 0 && v <= maxV) {
					t.Fatalf("%s[%d] = %v outside [0, %v]", g.Specs[c].Name, i, v, maxV)
				}
			}
		}
	}
}

type recordingLayer struct {
	deposits int
	samples  int
}

func (l *recordingLayer) Sample(x, y float32) float32 {
	l.samples++
	return 0.25
}

func (l *recordingLayer) Deposit(x, y, amount float32) { l.deposits++ }

func TestHostSigilLayer(t *testing.T) {
	w := newLoaded(t, testConfig())
	layer := &recordingLayer{}
	w.SetSigilLayer(layer)
	if w.Sigil != nil {
		t.Fatal("host layer should not be stepped by the world")
	}
	run(w, 5)
	if layer.deposits == 0 || layer.samples == 0 {
		t.Errorf("host layer unused: %+v", layer)
	}
	if s := w.Env.Read(1, 1); s.Sigil != 0.25 {
		t.Errorf("sigil signal = %v, want 0.25", s.Sigil)
	}
}

func TestLoadScenario(t *testing.T) {
	w := NewWorld(testConfig())
	for _, name := range Scenarios {
		if err := LoadScenario(w, name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if w.Particles.Count == 0 {
			t.Errorf("%s spawned nothing", name)
		}
		if !w.Feedback.Deltas().IsZero() || w.Feedback.State.Evaluations != 0 {
			t.Errorf("%s did not reset the controller", name)
		}
		run(w, 10)
	}

	if err := LoadScenario(w, "nope"); err == nil {
		t.Error("unknown scenario accepted")
	}

	// Fields are cleared, never resized
	lw, lh := w.Env.Layers.Resolution()
	w.Env.Layers.Inject(10, 10, field.Tension, 1)
	if err := LoadScenario(w, ScenarioSegregation); err != nil {
		t.Fatal(err)
	}
	if gw, gh := w.Env.Layers.Resolution(); gw != lw || gh != lh {
		t.Errorf("layers resized to %dx%d", gw, gh)
	}
	if w.Env.Layers.Sum(field.Tension) != 0 {
		t.Error("tension survived a scenario load")
	}
	if w.Matrix.N != 2 {
		t.Errorf("segregation has %d types", w.Matrix.N)
	}
	if err := LoadScenario(w, ScenarioRandom); err != nil {
		t.Fatal(err)
	}
	if w.Matrix.N != 4 {
		t.Errorf("random after segregation has %d types, want 4", w.Matrix.N)
	}
}

func TestFoodScenarioFeeds(t *testing.T) {
	cfg := testConfig()
	cfg.Food.Reach = 20
	w := newLoaded(t, cfg)
	food := 0
	for i := 0; i < w.Particles.Count; i++ {
		if w.Particles.IsFood(i) {
			food++
		}
	}
	want := int(math.Round(float64(cfg.World.InitialCount) * cfg.Scenario.FoodFraction))
	if food != want {
		t.Errorf("food = %d, want %d", food, want)
	}
	feeds := 0
	for i := 0; i < 300; i++ {
		Step(w, w.Config.Derived.DT32)
		feeds += w.Kernel.Stats().FeedEvents
	}
	if feeds == 0 {
		t.Error("no particle ever fed on food")
	}
}
