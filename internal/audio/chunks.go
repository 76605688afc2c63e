package audio

import (
	"time"

	"vadseg/internal/segment"
	"vadseg/internal/vaderr"
)

func sampleIndex(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}

// Slice returns the samples covered by seg. The result aliases samples.
func Slice(seg segment.Segment, samples []float32, rate int) ([]float32, error) {
	if rate <= 0 {
		return nil, vaderr.Invalid("sample rate must be positive (got %d)", rate)
	}
	if seg.Start < 0 || seg.Start > seg.End {
		return nil, vaderr.Invalid("segment %s out of order", seg)
	}
	start, end := sampleIndex(seg.Start, rate), sampleIndex(seg.End, rate)
	if start >= len(samples) || end > len(samples) {
		return nil, vaderr.Invalid("segment %s exceeds audio of %d samples", seg, len(samples))
	}
	return samples[start:end], nil
}

// Collect concatenates the audio of every segment.
func Collect(segs []segment.Segment, samples []float32, rate int) ([]float32, error) {
	var out []float32
	for _, seg := range segs {
		part, err := Slice(seg, samples, rate)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// Drop returns the audio with every segment removed. Segments must be
// ordered by start; overlaps are merged.
func Drop(segs []segment.Segment, samples []float32, rate int) ([]float32, error) {
	out := make([]float32, 0, len(samples))
	cursor := 0
	for _, seg := range segs {
		if _, err := Slice(seg, samples, rate); err != nil {
			return nil, err
		}
		start, end := sampleIndex(seg.Start, rate), sampleIndex(seg.End, rate)
		if start > cursor {
			out = append(out, samples[cursor:start]...)
		}
		if end > cursor {
			cursor = end
		}
	}
	return append(out, samples[cursor:]...), nil
}
