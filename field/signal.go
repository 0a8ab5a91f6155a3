package field

// Signal is the local field reading at one point. Every channel is explicit;
// when a grid is absent its channels take the defaults below.
//
//	Nutrient 0.5, every other channel 0.
//
// Scarcity, Volatility and Cohesion are derived from the raw channels.
type Signal struct {
	Nutrient float32
	Tension  float32
	Memory   float32
	Entropy  float32

	Charge   float32
	Affinity float32
	Stress   float32

	Sigil float32

	Scarcity   float32 // 1 - Nutrient
	Volatility float32 // Tension, Stress, Entropy and Sigil combined, in [0,1]
	Cohesion   float32 // Affinity and Memory combined, in [0,1]
}

// DefaultSignal returns the reading used when no grid is present.
func DefaultSignal() Signal {
	s := Signal{Nutrient: 0.5}
	s.derive()
	return s
}

func (s *Signal) derive() {
	s.Scarcity = clamp01(1 - s.Nutrient)
	s.Volatility = clamp01(0.35*s.Tension + 0.35*s.Stress + 0.2*s.Entropy + 0.1*s.Sigil)
	s.Cohesion = clamp01(0.6*s.Affinity + 0.4*s.Memory)
}

// Layer is an optional secondary field the host injects. It replaces
// host-installed global sample/deposit callbacks.
type Layer interface {
	Sample(x, y float32) float32
	Deposit(x, y, amount float32)
}

// SigilLayer adapts a sigil grid to the Layer interface. Deposits land in
// Mark; samples read Echo, which Step feeds from Mark.
type SigilLayer struct {
	Grid *Grid
	// EchoRate is the per-second share of Mark copied into Echo.
	EchoRate float32
}

// Sample reads the echo channel.
func (s *SigilLayer) Sample(x, y float32) float32 {
	return s.Grid.Sample(x, y, Echo)
}

// Deposit writes to the mark channel.
func (s *SigilLayer) Deposit(x, y, amount float32) {
	s.Grid.Inject(x, y, Mark, amount)
}

// Step advances the sigil grid and feeds Echo from Mark.
func (s *SigilLayer) Step(dt float32) {
	k := s.EchoRate * dt
	if k > 1 {
		k = 1
	}
	if k > 0 {
		mark, echo := s.Grid.Data[Mark], s.Grid.Data[Echo]
		maxV := s.Grid.Specs[Echo].Max
		for i := range echo {
			echo[i] = clampRange(echo[i]+(mark[i]-echo[i])*k, maxV)
		}
	}
	s.Grid.Step(dt)
}

// Environment bundles the grids the force kernel and the slower systems read.
// Any member may be nil.
type Environment struct {
	Layers    *Grid
	Recursive *Grid
	Sigil     Layer
}

// Read returns the tagged signal at (x, y) using nearest-cell lookups.
func (e *Environment) Read(x, y float32) Signal {
	s := Signal{Nutrient: 0.5}
	if e == nil {
		s.derive()
		return s
	}
	if g := e.Layers; g != nil {
		s.Nutrient = g.SampleUnit(x, y, Nutrient)
		s.Tension = g.SampleUnit(x, y, Tension)
		s.Memory = g.SampleUnit(x, y, Memory)
		s.Entropy = g.SampleUnit(x, y, Entropy)
	}
	if g := e.Recursive; g != nil {
		s.Charge = g.SampleUnit(x, y, Charge)
		s.Affinity = g.SampleUnit(x, y, Affinity)
		s.Stress = g.SampleUnit(x, y, Stress)
	}
	if e.Sigil != nil {
		s.Sigil = clamp01(e.Sigil.Sample(x, y))
	}
	s.derive()
	return s
}

// Deposit injects into a layers channel when the layers grid is present.
func (e *Environment) Deposit(c Channel, x, y, amount float32) {
	if e != nil && e.Layers != nil {
		e.Layers.Inject(x, y, c, amount)
	}
}

// DepositRecursive injects into a recursive channel when that grid is present.
func (e *Environment) DepositRecursive(c Channel, x, y, amount float32) {
	if e != nil && e.Recursive != nil {
		e.Recursive.Inject(x, y, c, amount)
	}
}

// DepositSigil writes to the sigil layer when one is installed.
func (e *Environment) DepositSigil(x, y, amount float32) {
	if e != nil && e.Sigil != nil {
		e.Sigil.Deposit(x, y, amount)
	}
}

// Clear zeroes every grid without resizing. Sigil layers that are not
// grid-backed are left to the host.
func (e *Environment) Clear() {
	if e == nil {
		return
	}
	if e.Layers != nil {
		e.Layers.Clear()
	}
	if e.Recursive != nil {
		e.Recursive.Clear()
	}
	if sl, ok := e.Sigil.(*SigilLayer); ok && sl.Grid != nil {
		sl.Grid.Clear()
	}
}

func clamp01(x float32) float32 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
