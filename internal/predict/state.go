package predict

// State is the recurrent context a predictor carries between calls for one
// stream. It holds one fixed-width slot per batch position, the sample rate it
// was shaped for and an epoch that advances on every reset, so predictors
// backed by native handles can tell when to rebuild them.
//
// State is owned by the caller and passed into every Predict call. A
// predictor that cannot keep its context here, such as one backed by a native
// handle, may only continue from that context while the state it last
// advanced is the one passed back in (see WebRTC).
type State struct {
	width int
	rate  int
	epoch uint64
	// seq counts completed calls on externally held context.
	seq   uint64
	slots [][]float32
}

// NewState returns an unshaped state with slots of the given width.
func NewState(width int) *State {
	if width < 0 {
		width = 0
	}
	return &State{width: width}
}

// Width is the number of floats per slot.
func (s *State) Width() int { return s.width }

// Slots is the batch size the state is currently shaped for.
func (s *State) Slots() int { return len(s.slots) }

// SampleRate is the rate the state was shaped for, 0 before the first Shape.
func (s *State) SampleRate() int { return s.rate }

// Epoch increases each time the context is zeroed.
func (s *State) Epoch() uint64 { return s.epoch }

// Slot returns the context of batch position i for in-place updates.
func (s *State) Slot(i int) []float32 { return s.slots[i] }

// Shape makes the state fit a batch of slots frames at sampleRate. Any change
// of batch size or sample rate discards the old context; Shape reports
// whether that happened.
func (s *State) Shape(slots, sampleRate int) bool {
	if slots == len(s.slots) && sampleRate == s.rate {
		return false
	}
	s.slots = make([][]float32, slots)
	for i := range s.slots {
		s.slots[i] = make([]float32, s.width)
	}
	s.rate = sampleRate
	s.epoch++
	return true
}

// Reset zeroes every slot without changing the shape.
func (s *State) Reset() {
	for _, slot := range s.slots {
		clear(slot)
	}
	s.epoch++
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	cp := &State{width: s.width, rate: s.rate, epoch: s.epoch, seq: s.seq}
	if s.slots != nil {
		cp.slots = make([][]float32, len(s.slots))
		for i, slot := range s.slots {
			cp.slots[i] = append([]float32(nil), slot...)
		}
	}
	return cp
}
