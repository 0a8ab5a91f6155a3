package sim

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pthm-cable/emergent/config"
	"github.com/pthm-cable/emergent/field"
)

func TestSnapshotRoundTrip(t *testing.T) {
	w := newLoaded(t, testConfig())
	run(w, 120)
	snap := TakeSnapshot(w)

	path, err := SaveSnapshot(snap, t.TempDir())
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if filepath.Base(path) != "snapshot_120.json" {
		t.Errorf("path = %s", path)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	// Restore into a world of a different size
	fresh := NewWorld(config.Default())
	if err := Restore(fresh, loaded); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if fresh.Tick != w.Tick || fresh.SimTime != w.SimTime || fresh.Seed != w.Seed {
		t.Errorf("clock = (%d, %v, %d), want (%d, %v, %d)",
			fresh.Tick, fresh.SimTime, fresh.Seed, w.Tick, w.SimTime, w.Seed)
	}
	if fresh.Force.Width != w.Force.Width || fresh.Force.Height != w.Force.Height {
		t.Errorf("world size = %vx%v", fresh.Force.Width, fresh.Force.Height)
	}
	if !reflect.DeepEqual(liveSlots(fresh.Particles), liveSlots(w.Particles)) {
		t.Error("particles differ after round trip")
	}
	if !reflect.DeepEqual(fresh.Matrix.Base, w.Matrix.Base) || !reflect.DeepEqual(fresh.Matrix.Attract, w.Matrix.Attract) {
		t.Error("matrix differs after round trip")
	}
	if !reflect.DeepEqual(fresh.Env.Layers.Data, w.Env.Layers.Data) {
		t.Error("layers differ after round trip")
	}
	if !reflect.DeepEqual(fresh.Registry.Entries(), w.Registry.Entries()) {
		t.Error("archetypes differ after round trip")
	}
	fs, ws := fresh.Feedback.State, w.Feedback.State
	if fs.Phase != ws.Phase || fs.Deltas != ws.Deltas || fs.Evaluations != ws.Evaluations || fs.History.Len() != ws.History.Len() {
		t.Error("controller state differs after round trip")
	}
}

func TestRestoredWorldsContinueIdentically(t *testing.T) {
	w := newLoaded(t, testConfig())
	run(w, 90)
	snap := TakeSnapshot(w)
	path, err := SaveSnapshot(snap, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}

	a := NewWorld(config.Default())
	b := NewWorld(testConfig())
	if err := Restore(a, loaded); err != nil {
		t.Fatal(err)
	}
	if err := Restore(b, snap); err != nil {
		t.Fatal(err)
	}
	run(a, 150)
	run(b, 150)
	if !reflect.DeepEqual(liveSlots(a.Particles), liveSlots(b.Particles)) {
		t.Error("disk and in-memory restores diverged")
	}
	if !reflect.DeepEqual(a.Env.Recursive.Data, b.Env.Recursive.Data) {
		t.Error("recursive fields diverged")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	w := newLoaded(t, testConfig())
	snap := TakeSnapshot(w)
	x := snap.Particles.X[0]
	run(w, 10)
	if snap.Particles.X[0] != x {
		t.Error("stepping the world changed the snapshot")
	}
	if snap.Tick != 0 {
		t.Errorf("snapshot tick = %d", snap.Tick)
	}
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(s *Snapshot)
	}{
		{"version", func(s *Snapshot) { s.Version = SnapshotVersion + 1 }},
		{"missing matrix", func(s *Snapshot) { s.Matrix = nil }},
		{"short matrix row", func(s *Snapshot) { s.Matrix.Base[0] = s.Matrix.Base[0][:1] }},
		{"short buffer", func(s *Snapshot) { s.Particles.X = s.Particles.X[:3] }},
		{"count over capacity", func(s *Snapshot) { s.Particles.Count = s.Particles.Max + 1 }},
		{"grid cells", func(s *Snapshot) { s.Layers.Data[0] = s.Layers.Data[0][:1] }},
		{"grid max", func(s *Snapshot) { s.Layers.Specs[0].Max = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newLoaded(t, testConfig())
			run(w, 5)
			snap := TakeSnapshot(w)
			tt.corrupt(snap)

			count, tick := w.Particles.Count, w.Tick
			if err := Restore(w, snap); err == nil {
				t.Fatal("corrupt snapshot accepted")
			}
			if w.Particles.Count != count || w.Tick != tick {
				t.Error("failed restore modified the world")
			}
		})
	}
}

func TestRestoreKeepsHostSigilLayer(t *testing.T) {
	w := newLoaded(t, testConfig())
	snap := TakeSnapshot(w)

	layer := &recordingLayer{}
	w.SetSigilLayer(layer)
	if err := Restore(w, snap); err != nil {
		t.Fatal(err)
	}
	if w.Env.Sigil != field.Layer(layer) {
		t.Error("host sigil layer replaced by restore")
	}
	if w.Sigil != nil {
		t.Error("world steps a sigil grid alongside the host layer")
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(bad); err == nil {
		t.Error("malformed file accepted")
	}
}
