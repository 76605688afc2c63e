// Package frame slices raw audio into the fixed-length frames the predictors
// consume. A frame is 32 ms long at every supported sample rate.
package frame

import (
	"time"

	"vadseg/internal/vaderr"
)

// Supported sample rates.
const (
	Rate8k  = 8000
	Rate16k = 16000
)

// Size returns the number of samples per frame at sampleRate.
func Size(sampleRate int) (int, error) {
	switch sampleRate {
	case Rate16k:
		return 512, nil
	case Rate8k:
		return 256, nil
	default:
		return 0, vaderr.Invalid("sample rate must be 8000 or 16000 (got %d)", sampleRate)
	}
}

// Duration returns the length of one frame at sampleRate.
func Duration(sampleRate int) (time.Duration, error) {
	n, err := Size(sampleRate)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate), nil
}

// Frame is an immutable block of normalized samples at a known sample rate.
type Frame struct {
	samples []float32
	rate    int
}

// New copies samples into a Frame after checking the length matches the
// frame size for sampleRate.
func New(samples []float32, sampleRate int) (Frame, error) {
	n, err := Size(sampleRate)
	if err != nil {
		return Frame{}, err
	}
	if len(samples) != n {
		return Frame{}, vaderr.Invalid("frame must be %d samples at %d Hz (got %d)", n, sampleRate, len(samples))
	}
	cp := make([]float32, n)
	copy(cp, samples)
	return Frame{samples: cp, rate: sampleRate}, nil
}

// Samples exposes the frame data. The slice is shared; callers must not write to it.
func (f Frame) Samples() []float32 { return f.samples }

// SampleRate returns the rate the frame was cut at.
func (f Frame) SampleRate() int { return f.rate }

// Len returns the number of samples.
func (f Frame) Len() int { return len(f.samples) }

// Duration returns the time span covered by the frame.
func (f Frame) Duration() time.Duration {
	if f.rate == 0 {
		return 0
	}
	return time.Duration(len(f.samples)) * time.Second / time.Duration(f.rate)
}

// Split cuts samples into consecutive non-overlapping frames. A trailing
// partial frame is dropped, not zero-padded.
func Split(samples []float32, sampleRate int) ([]Frame, error) {
	n, err := Size(sampleRate)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(samples)/n)
	for pos := 0; pos+n <= len(samples); pos += n {
		cp := make([]float32, n)
		copy(cp, samples[pos:pos+n])
		frames = append(frames, Frame{samples: cp, rate: sampleRate})
	}
	return frames, nil
}

// Batches groups frames into runs of at most size frames, keeping order.
// The last batch may be shorter.
func Batches(frames []Frame, size int) [][]Frame {
	if size < 1 {
		size = 1
	}
	out := make([][]Frame, 0, (len(frames)+size-1)/size)
	for len(frames) > 0 {
		n := min(size, len(frames))
		out = append(out, frames[:n:n])
		frames = frames[n:]
	}
	return out
}
