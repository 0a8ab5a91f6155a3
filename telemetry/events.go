package telemetry

import (
	"fmt"
	"log/slog"
)

// EventType identifies a notable simulation moment.
type EventType string

const (
	EventArchetypeMinted EventType = "archetype_minted"
	EventValveTripped    EventType = "valve_tripped"
	EventPhaseShift      EventType = "phase_shift"
	EventExtinction      EventType = "extinction"
)

// Event is one logged moment. It is also the events.csv row.
type Event struct {
	Type        EventType `csv:"type"`
	Tick        uint64    `csv:"tick"`
	SimTime     float64   `csv:"sim_time"`
	Description string    `csv:"description"`
}

// LogEvent logs the event using slog.
func (e Event) LogEvent() {
	slog.Info("event",
		"type", string(e.Type),
		"tick", e.Tick,
		"sim_time", e.SimTime,
		"description", e.Description,
	)
}

// NewMintEvent reports a freshly minted archetype.
func NewMintEvent(tick uint64, simTime float64, index int, name, sigil string) Event {
	return Event{
		Type:        EventArchetypeMinted,
		Tick:        tick,
		SimTime:     simTime,
		Description: fmt.Sprintf("archetype %d %s %s", index, name, sigil),
	}
}

// NewValveEvent reports a safety valve trip.
func NewValveEvent(tick uint64, simTime float64, trips int) Event {
	return Event{
		Type:        EventValveTripped,
		Tick:        tick,
		SimTime:     simTime,
		Description: fmt.Sprintf("modulation suspended, trip %d", trips),
	}
}

// NewPhaseEvent reports a feedback regime change.
func NewPhaseEvent(tick uint64, simTime float64, regime string) Event {
	return Event{
		Type:        EventPhaseShift,
		Tick:        tick,
		SimTime:     simTime,
		Description: "entered " + regime,
	}
}

// ExtinctionWatch tracks which particle types are present and reports the
// ones that vanish. A type that reappears can go extinct again.
type ExtinctionWatch struct {
	present []bool
	counts  []int
}

// NewExtinctionWatch creates a watch for types particle types.
func NewExtinctionWatch(types int) *ExtinctionWatch {
	if types < 0 {
		types = 0
	}
	return &ExtinctionWatch{present: make([]bool, types), counts: make([]int, types)}
}

// Check counts the live type tags and returns one event per type that was
// present on the last call and is now gone.
func (w *ExtinctionWatch) Check(tick uint64, simTime float64, tags []int32) []Event {
	for t := range w.counts {
		w.counts[t] = 0
	}
	for _, t := range tags {
		if t >= 0 && int(t) < len(w.counts) {
			w.counts[t]++
		}
	}

	var events []Event
	for t, c := range w.counts {
		if c == 0 && w.present[t] {
			events = append(events, Event{
				Type:        EventExtinction,
				Tick:        tick,
				SimTime:     simTime,
				Description: fmt.Sprintf("type %d extinct", t),
			})
		}
		w.present[t] = c > 0
	}
	return events
}

// Resize changes the number of watched types, keeping overlapping state.
func (w *ExtinctionWatch) Resize(types int) {
	if types < 0 {
		types = 0
	}
	present := make([]bool, types)
	copy(present, w.present)
	w.present = present
	w.counts = make([]int, types)
}
