// Package species detects sustained genetic drift and mints archetypes.
package species

import (
	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/field"
)

// Archetype is the flattened, serializable view of one registry entry.
type Archetype struct {
	Index    int                          `json:"index"`
	ID       uuid.UUID                    `json:"id"`
	Sigil    string                       `json:"sigil"`
	Name     string                       `json:"name"`
	Color    [3]uint8                     `json:"color"`
	Centroid [components.NumGenes]float32 `json:"centroid"`

	SimTime    float64 `json:"sim_time"`
	Tick       uint64  `json:"tick"`
	Volatility float32 `json:"volatility"`
	Scarcity   float32 `json:"scarcity"`
	Cohesion   float32 `json:"cohesion"`
}

// Registry is an append-only set of archetypes. Entries live as entities in
// an ECS world; entities keeps them in minting order for deterministic reads.
type Registry struct {
	cfg config.SpeciesConfig

	world    *ecs.World
	mapper   *ecs.Map3[components.Centroid, components.Identity, components.Origin]
	filter   *ecs.Filter1[components.Centroid]
	entities []ecs.Entity

	a, b []float64 // distance scratch
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg config.SpeciesConfig) *Registry {
	r := &Registry{
		cfg: cfg,
		a:   make([]float64, components.NumGenes),
		b:   make([]float64, components.NumGenes),
	}
	r.resetWorld()
	return r
}

func (r *Registry) resetWorld() {
	world := ecs.NewWorld()
	r.world = world
	r.mapper = ecs.NewMap3[components.Centroid, components.Identity, components.Origin](world)
	r.filter = ecs.NewFilter1[components.Centroid](world)
	r.entities = r.entities[:0]
}

// Len returns the number of archetypes.
func (r *Registry) Len() int { return len(r.entities) }

// Sample is the population summary a speciation check is based on.
type Sample struct {
	Centroid   [components.NumGenes]float32
	Volatility float32
	Scarcity   float32
	Cohesion   float32
	Count      int
}

// Summarize computes the gene centroid and mean field signal over a stride
// sample of at most size non-food particles. It draws nothing from the
// random source.
func Summarize(ps *components.ParticleSet, env *field.Environment, size int) Sample {
	var s Sample
	if ps == nil || ps.Count == 0 {
		return s
	}
	stride := 1
	if size > 0 && ps.Count > size {
		stride = (ps.Count + size - 1) / size
	}
	var genes [components.NumGenes]float64
	var vol, scar, coh float64
	for i := 0; i < ps.Count; i += stride {
		if ps.Type[i] < 0 {
			continue
		}
		for g := range genes {
			genes[g] += float64(ps.Genes[g][i])
		}
		sig := env.Read(ps.X[i], ps.Y[i])
		vol += float64(sig.Volatility)
		scar += float64(sig.Scarcity)
		coh += float64(sig.Cohesion)
		s.Count++
	}
	if s.Count == 0 {
		return s
	}
	n := float64(s.Count)
	for g := range genes {
		s.Centroid[g] = float32(genes[g] / n)
	}
	s.Volatility = float32(vol / n)
	s.Scarcity = float32(scar / n)
	s.Cohesion = float32(coh / n)
	return s
}

// Check samples the population and mints an archetype when the centroid is
// farther than MinDistance from every existing centroid and the field signal
// is volatile or scarce enough. Returns the new entry and true on a mint.
func (r *Registry) Check(ps *components.ParticleSet, env *field.Environment, seed int64, simTime float64, tick uint64) (Archetype, bool) {
	if !r.cfg.Enabled {
		return Archetype{}, false
	}
	s := Summarize(ps, env, r.cfg.SampleSize)
	if s.Count == 0 {
		return Archetype{}, false
	}
	if float64(s.Volatility) < r.cfg.MinVolatility && float64(s.Scarcity) < r.cfg.MinScarcity {
		return Archetype{}, false
	}
	if _, d, ok := r.Nearest(s.Centroid); ok && d <= r.cfg.MinDistance {
		return Archetype{}, false
	}
	return r.mint(s, seed, simTime, tick), true
}

// Nearest returns the archetype whose centroid is closest to genes and the
// Euclidean distance to it. ok is false for an empty registry.
func (r *Registry) Nearest(genes [components.NumGenes]float32) (Archetype, float64, bool) {
	for g, v := range genes {
		r.a[g] = float64(v)
	}
	best := -1.0
	var bestEntity ecs.Entity

	query := r.filter.Query()
	for query.Next() {
		c := query.Get()
		for g, v := range c.Genes {
			r.b[g] = float64(v)
		}
		d := floats.Distance(r.a, r.b, 2)
		if best < 0 || d < best {
			best = d
			bestEntity = query.Entity()
		}
	}
	if best < 0 {
		return Archetype{}, 0, false
	}
	return r.view(bestEntity), best, true
}

func (r *Registry) mint(s Sample, seed int64, simTime float64, tick uint64) Archetype {
	index := len(r.entities)
	id := archetypeID(seed, index, s.Centroid)

	centroid := components.Centroid{Genes: s.Centroid}
	ident := components.Identity{
		Index: index,
		ID:    id,
		Sigil: sigilFor(id),
		Name:  nameFor(id),
		Color: colorFor(index),
	}
	origin := components.Origin{
		SimTime:    simTime,
		Tick:       tick,
		Volatility: s.Volatility,
		Scarcity:   s.Scarcity,
		Cohesion:   s.Cohesion,
	}
	e := r.mapper.NewEntity(&centroid, &ident, &origin)
	r.entities = append(r.entities, e)
	return r.view(e)
}

func (r *Registry) view(e ecs.Entity) Archetype {
	c, id, o := r.mapper.Get(e)
	return Archetype{
		Index:      id.Index,
		ID:         id.ID,
		Sigil:      id.Sigil,
		Name:       id.Name,
		Color:      id.Color,
		Centroid:   c.Genes,
		SimTime:    o.SimTime,
		Tick:       o.Tick,
		Volatility: o.Volatility,
		Scarcity:   o.Scarcity,
		Cohesion:   o.Cohesion,
	}
}

// Entries returns every archetype in minting order.
func (r *Registry) Entries() []Archetype {
	out := make([]Archetype, len(r.entities))
	for i, e := range r.entities {
		out[i] = r.view(e)
	}
	return out
}

// Restore replaces the registry contents with entries, keeping their order.
func (r *Registry) Restore(entries []Archetype) {
	r.resetWorld()
	for _, a := range entries {
		centroid := components.Centroid{Genes: a.Centroid}
		ident := components.Identity{Index: a.Index, ID: a.ID, Sigil: a.Sigil, Name: a.Name, Color: a.Color}
		origin := components.Origin{
			SimTime:    a.SimTime,
			Tick:       a.Tick,
			Volatility: a.Volatility,
			Scarcity:   a.Scarcity,
			Cohesion:   a.Cohesion,
		}
		r.entities = append(r.entities, r.mapper.NewEntity(&centroid, &ident, &origin))
	}
}
