// Package components defines the particle data model and the ECS components
// used by the archetype registry.
package components

// FoodType is the reserved type tag for food particles. Food is never moved
// by the force kernel and never acts as a force source.
const FoodType int32 = -1

// NumGenes is the number of genotype scalars carried by each particle.
const NumGenes = 4

// Gene indices into ParticleSet.Genes.
const (
	GeneA = iota
	GeneB
	GeneC
	GeneD
)

// Particle is a single particle's state, used to add or read one slot.
type Particle struct {
	X, Y   float32
	VX, VY float32
	Type   int32
	Genes  [NumGenes]float32
	Energy float32
	Age    float32
	Size   float32 // mutation potential, ignored by physics
}

// ParticleSet stores particles as struct-of-arrays with a fixed capacity.
// Slots [0, Count) are live. Buffers are sized to Max at creation and only
// change length through Grow.
type ParticleSet struct {
	Count int `json:"count"`
	Max   int `json:"max"`

	X  []float32 `json:"x"`
	Y  []float32 `json:"y"`
	VX []float32 `json:"vx"`
	VY []float32 `json:"vy"`

	Type  []int32             `json:"type"`
	Genes [NumGenes][]float32 `json:"genes"`

	Energy []float32 `json:"energy"`
	Age    []float32 `json:"age"`
	Size   []float32 `json:"size"`
}

// NewParticleSet allocates a set with capacity max.
func NewParticleSet(max int) *ParticleSet {
	if max < 0 {
		max = 0
	}
	ps := &ParticleSet{Max: max}
	ps.alloc(max)
	return ps
}

func (ps *ParticleSet) alloc(n int) {
	ps.X = growSlice(ps.X, n)
	ps.Y = growSlice(ps.Y, n)
	ps.VX = growSlice(ps.VX, n)
	ps.VY = growSlice(ps.VY, n)
	ps.Energy = growSlice(ps.Energy, n)
	ps.Age = growSlice(ps.Age, n)
	ps.Size = growSlice(ps.Size, n)
	for g := range ps.Genes {
		ps.Genes[g] = growSlice(ps.Genes[g], n)
	}
	if len(ps.Type) < n {
		t := make([]int32, n)
		copy(t, ps.Type)
		ps.Type = t
	}
}

func growSlice(s []float32, n int) []float32 {
	if len(s) >= n {
		return s
	}
	out := make([]float32, n)
	copy(out, s)
	return out
}

// Full reports whether the set is at capacity.
func (ps *ParticleSet) Full() bool { return ps.Count >= ps.Max }

// Add appends a particle. Returns the slot and true, or -1 and false when
// the set is full.
func (ps *ParticleSet) Add(p Particle) (int, bool) {
	if ps.Count >= ps.Max {
		return -1, false
	}
	i := ps.Count
	ps.Count++
	ps.Set(i, p)
	return i, true
}

// Set overwrites slot i.
func (ps *ParticleSet) Set(i int, p Particle) {
	ps.X[i], ps.Y[i] = p.X, p.Y
	ps.VX[i], ps.VY[i] = p.VX, p.VY
	ps.Type[i] = p.Type
	for g := range ps.Genes {
		ps.Genes[g][i] = p.Genes[g]
	}
	ps.Energy[i] = p.Energy
	ps.Age[i] = p.Age
	ps.Size[i] = p.Size
}

// Get returns a copy of slot i.
func (ps *ParticleSet) Get(i int) Particle {
	p := Particle{
		X: ps.X[i], Y: ps.Y[i],
		VX: ps.VX[i], VY: ps.VY[i],
		Type:   ps.Type[i],
		Energy: ps.Energy[i],
		Age:    ps.Age[i],
		Size:   ps.Size[i],
	}
	for g := range ps.Genes {
		p.Genes[g] = ps.Genes[g][i]
	}
	return p
}

// Remove deletes slot i by moving the last live slot into it.
// Slot order is not preserved; no tombstones are left behind.
func (ps *ParticleSet) Remove(i int) {
	if i < 0 || i >= ps.Count {
		return
	}
	last := ps.Count - 1
	if i != last {
		ps.Set(i, ps.Get(last))
	}
	ps.Count--
}

// Grow raises capacity to max, keeping every existing slot at its index.
// It never shrinks.
func (ps *ParticleSet) Grow(max int) {
	if max <= ps.Max {
		return
	}
	ps.alloc(max)
	ps.Max = max
}

// Reset drops every particle but keeps the buffers.
func (ps *ParticleSet) Reset() { ps.Count = 0 }

// IsFood reports whether slot i holds food.
func (ps *ParticleSet) IsFood(i int) bool { return ps.Type[i] == FoodType }

// ValidType reports whether slot i has a type usable with an n-type matrix.
func (ps *ParticleSet) ValidType(i, n int) bool {
	t := ps.Type[i]
	return t >= 0 && int(t) < n
}

// Clone returns a deep copy.
func (ps *ParticleSet) Clone() *ParticleSet {
	c := NewParticleSet(ps.Max)
	c.Count = ps.Count
	copy(c.X, ps.X)
	copy(c.Y, ps.Y)
	copy(c.VX, ps.VX)
	copy(c.VY, ps.VY)
	copy(c.Type, ps.Type)
	for g := range ps.Genes {
		copy(c.Genes[g], ps.Genes[g])
	}
	copy(c.Energy, ps.Energy)
	copy(c.Age, ps.Age)
	copy(c.Size, ps.Size)
	return c
}
