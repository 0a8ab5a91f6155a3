package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/feedback"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/matrix"
	"github.com/pthm-cable/emergent/rng"
	"github.com/pthm-cable/emergent/species"
	"github.com/pthm-cable/emergent/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the complete world state.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Config    *config.Config          `json:"config"`
	Matrix    *matrix.Matrix          `json:"matrix"` // carries Base alongside Attract
	Particles *components.ParticleSet `json:"particles"`

	Layers    *field.Grid `json:"layers,omitempty"`
	Recursive *field.Grid `json:"recursive,omitempty"`
	Sigil     *field.Grid `json:"sigil,omitempty"`

	Feedback   *feedback.State     `json:"feedback,omitempty"`
	Archetypes []species.Archetype `json:"archetypes"`

	FieldAccum [numCadences]float64 `json:"field_accum"`
	BaseTypes  int                  `json:"base_types"`

	SimTime float64 `json:"sim_time"`
	Tick    uint64  `json:"tick"`
}

// TakeSnapshot deep-copies the state of w.
func TakeSnapshot(w *World) *Snapshot {
	s := &Snapshot{
		Version:    SnapshotVersion,
		Seed:       w.Seed,
		Config:     w.Config.Clone(),
		Matrix:     w.Matrix.Clone(),
		Particles:  w.Particles.Clone(),
		Archetypes: w.Registry.Entries(),
		FieldAccum: w.fieldAccum,
		BaseTypes:  w.baseTypes,
		SimTime:    w.SimTime,
		Tick:       w.Tick,
	}
	if w.Env.Layers != nil {
		s.Layers = w.Env.Layers.Clone()
	}
	if w.Env.Recursive != nil {
		s.Recursive = w.Env.Recursive.Clone()
	}
	if w.Sigil != nil && w.Sigil.Grid != nil {
		s.Sigil = w.Sigil.Grid.Clone()
	}
	if w.Feedback != nil {
		st := w.Feedback.State
		st.History = st.History.Clone()
		s.Feedback = &st
	}
	return s
}

// Restore replaces the state of w with s. The force kernel is rebuilt for
// the restored world size, and the random stream restarts from
// Seed+Tick. w is untouched when s fails validation.
func Restore(w *World, s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("restore: nil snapshot")
	}
	if s.Version != SnapshotVersion {
		return fmt.Errorf("restore: snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	if s.Config == nil || s.Matrix == nil || s.Particles == nil {
		return fmt.Errorf("restore: snapshot is missing config, matrix or particles")
	}
	if err := s.Matrix.Validate(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if err := validateParticles(s.Particles); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	for _, g := range []*field.Grid{s.Layers, s.Recursive, s.Sigil} {
		if err := validateGrid(g); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	var hostLayer field.Layer
	if w.Sigil == nil {
		hostLayer = w.Env.Sigil
	}

	cfg := s.Config.Clone()
	cfg.Finalize()
	w.Config = cfg
	w.Seed = s.Seed
	w.refreshParams()
	w.Matrix = s.Matrix.Clone()
	w.Particles = s.Particles.Clone()

	w.buildFields()
	if s.Layers != nil && w.Env.Layers != nil {
		w.Env.Layers = s.Layers.Clone()
	}
	if s.Recursive != nil && w.Env.Recursive != nil {
		w.Env.Recursive = s.Recursive.Clone()
	}
	if s.Sigil != nil && w.Sigil != nil {
		w.Sigil.Grid = s.Sigil.Clone()
	}
	if hostLayer != nil {
		w.SetSigilLayer(hostLayer)
	}

	if w.Feedback != nil {
		w.Feedback = feedback.NewController(cfg.Feedback)
		if s.Feedback != nil {
			st := *s.Feedback
			st.History = st.History.Clone()
			w.Feedback.Restore(st)
		}
	}
	w.Registry = species.NewRegistry(cfg.Species)
	w.Registry.Restore(s.Archetypes)

	w.fieldAccum = s.FieldAccum
	w.baseTypes = s.BaseTypes
	if w.baseTypes < 1 {
		w.baseTypes = cfg.World.Types
	}
	w.Tick = s.Tick
	w.SimTime = s.SimTime
	w.RNG = rng.New(s.Seed + int64(s.Tick))
	w.Energy.Reset()
	w.Kernel = systems.NewForceKernel(cfg.Derived.WorldW32, cfg.Derived.WorldH32)
	return nil
}

func validateParticles(ps *components.ParticleSet) error {
	if ps.Count < 0 || ps.Count > ps.Max {
		return fmt.Errorf("particle count %d outside capacity %d", ps.Count, ps.Max)
	}
	lens := []int{len(ps.X), len(ps.Y), len(ps.VX), len(ps.VY), len(ps.Type), len(ps.Energy), len(ps.Age), len(ps.Size)}
	for _, g := range ps.Genes {
		lens = append(lens, len(g))
	}
	for _, n := range lens {
		if n != ps.Max {
			return fmt.Errorf("particle buffer has %d slots, want %d", n, ps.Max)
		}
	}
	return nil
}

func validateGrid(g *field.Grid) error {
	if g == nil {
		return nil
	}
	if len(g.Data) != len(g.Specs) || len(g.Pending) != len(g.Specs) {
		return fmt.Errorf("grid has %d channels, %d specs", len(g.Data), len(g.Specs))
	}
	for c, sp := range g.Specs {
		if !(sp.Max > 0) {
			return fmt.Errorf("grid channel %d has max %v", c, sp.Max)
		}
	}
	for c := range g.Data {
		if len(g.Data[c]) != g.W*g.H || len(g.Pending[c]) != g.W*g.H {
			return fmt.Errorf("grid channel %d has %d cells, want %d", c, len(g.Data[c]), g.W*g.H)
		}
	}
	return nil
}

// SaveSnapshot writes s to dir as snapshot_<tick>.json and returns the path.
func SaveSnapshot(s *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", s.Tick))

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &s, nil
}
