package listen

import (
	"context"
	"io"

	"vadseg/internal/audio"
)

// SampleSource replays a buffer in fixed-size chunks.
type SampleSource struct {
	name    string
	rate    int
	samples []float32
	chunk   int
	pos     int
}

// NewSampleSource serves samples chunk at a time. chunk <= 0 means 10 ms.
func NewSampleSource(name string, samples []float32, rate, chunk int) *SampleSource {
	if chunk <= 0 {
		chunk = max(1, rate/100)
	}
	return &SampleSource{name: name, rate: rate, samples: samples, chunk: chunk}
}

// OpenWAV reads a whole WAV file into a SampleSource.
func OpenWAV(path string) (*SampleSource, error) {
	samples, rate, err := audio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	return NewSampleSource(path, samples, rate, 0), nil
}

func (s *SampleSource) Name() string    { return s.name }
func (s *SampleSource) SampleRate() int { return s.rate }
func (s *SampleSource) Close() error    { return nil }

func (s *SampleSource) Read(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := min(s.pos+s.chunk, len(s.samples))
	out := s.samples[s.pos:end]
	s.pos = end
	return out, nil
}
