package feedback

// History is a bounded ring of metric samples. Pushing into a full ring
// evicts the oldest entry.
type History struct {
	Buf   []Metrics `json:"buf"`
	Start int       `json:"start"`
	Size  int       `json:"size"`
}

// NewHistory creates a ring holding at most capacity entries.
func NewHistory(capacity int) History {
	if capacity < 1 {
		capacity = 1
	}
	return History{Buf: make([]Metrics, capacity)}
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.Size }

// Cap returns the ring capacity.
func (h *History) Cap() int { return len(h.Buf) }

// Push appends m, evicting the oldest entry when full.
func (h *History) Push(m Metrics) {
	if len(h.Buf) == 0 {
		return
	}
	if h.Size < len(h.Buf) {
		h.Buf[(h.Start+h.Size)%len(h.Buf)] = m
		h.Size++
		return
	}
	h.Buf[h.Start] = m
	h.Start = (h.Start + 1) % len(h.Buf)
}

// At returns the i-th entry, 0 being the oldest.
func (h *History) At(i int) Metrics {
	return h.Buf[(h.Start+i)%len(h.Buf)]
}

// Last returns the newest entry, or zero metrics when empty.
func (h *History) Last() Metrics {
	if h.Size == 0 {
		return Metrics{}
	}
	return h.At(h.Size - 1)
}

// Clear drops every entry without reallocating.
func (h *History) Clear() {
	clear(h.Buf)
	h.Start, h.Size = 0, 0
}

// Clone returns a copy that does not share the ring buffer.
func (h History) Clone() History {
	h.Buf = append([]Metrics(nil), h.Buf...)
	return h
}
