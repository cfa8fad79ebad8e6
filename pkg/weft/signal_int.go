package weft

// IntSignal wraps Signal[int] with counter helpers.
type IntSignal struct {
	*Signal[int]
}

// NewIntSignal creates an integer signal.
func NewIntSignal(initial int) *IntSignal {
	return &IntSignal{Signal: NewSignal(initial)}
}

// Inc increments by one.
func (s *IntSignal) Inc() {
	s.Update(func(v int) int { return v + 1 })
}

// Dec decrements by one.
func (s *IntSignal) Dec() {
	s.Update(func(v int) int { return v - 1 })
}

// Add adds delta, which may be negative.
func (s *IntSignal) Add(delta int) {
	s.Update(func(v int) int { return v + delta })
}
