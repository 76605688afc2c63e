package segment

import (
	"time"

	"vadseg/internal/vaderr"
)

// Filter keeps the segments whose duration lies within [min, max], in order.
// A max of zero means no upper bound. The input slice is not modified.
func Filter(segs []Segment, min, max time.Duration) ([]Segment, error) {
	if min < 0 || max < 0 {
		return nil, vaderr.Invalid("duration bounds must not be negative (min %s, max %s)", min, max)
	}
	if max != 0 && min > max {
		return nil, vaderr.Invalid("min speech %s exceeds max speech %s", min, max)
	}
	out := make([]Segment, 0, len(segs))
	for i, s := range segs {
		if s.Start < 0 || s.Start > s.End {
			return nil, vaderr.Invalid("segment %d out of bounds: %s", i, s)
		}
		d := s.Duration()
		if d < min || (max != 0 && d > max) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
