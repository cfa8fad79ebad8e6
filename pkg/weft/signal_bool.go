package weft

// BoolSignal wraps Signal[bool] with toggle helpers.
type BoolSignal struct {
	*Signal[bool]
}

// NewBoolSignal creates a boolean signal.
func NewBoolSignal(initial bool) *BoolSignal {
	return &BoolSignal{Signal: NewSignal(initial)}
}

// Toggle flips the value.
func (s *BoolSignal) Toggle() {
	s.Update(func(v bool) bool { return !v })
}

// SetTrue sets the value to true.
func (s *BoolSignal) SetTrue() {
	s.Set(true)
}

// SetFalse sets the value to false.
func (s *BoolSignal) SetFalse() {
	s.Set(false)
}
