package detect

import (
	"time"

	"vadseg/internal/frame"
	"vadseg/internal/segment"
	"vadseg/internal/vaderr"
)

// Config is everything a Detector needs besides its predictor.
type Config struct {
	Threshold  float64
	SampleRate int
	MinSilence time.Duration
	SpeechPad  time.Duration
	// MinSpeech and MaxSpeech bound segment length on the whole-file path.
	// A zero MaxSpeech means unbounded.
	MinSpeech time.Duration
	MaxSpeech time.Duration
	// BatchSize is the number of frames per predictor call on the whole-file
	// path.
	BatchSize int
}

// DefaultConfig mirrors the defaults of the config file.
func DefaultConfig() Config {
	return Config{
		Threshold:  0.5,
		SampleRate: frame.Rate16k,
		MinSilence: 100 * time.Millisecond,
		SpeechPad:  30 * time.Millisecond,
		MinSpeech:  250 * time.Millisecond,
		BatchSize:  1,
	}
}

func (c Config) engineOptions() segment.Options {
	return segment.Options{Threshold: c.Threshold, MinSilence: c.MinSilence, SpeechPad: c.SpeechPad}
}

// Validate reports the first problem found.
func (c Config) Validate() error {
	if err := c.engineOptions().Validate(); err != nil {
		return err
	}
	if _, err := frame.Size(c.SampleRate); err != nil {
		return err
	}
	if c.MinSpeech < 0 || c.MaxSpeech < 0 {
		return vaderr.Invalid("speech duration bounds must not be negative")
	}
	if c.MaxSpeech != 0 && c.MinSpeech > c.MaxSpeech {
		return vaderr.Invalid("min speech %s exceeds max speech %s", c.MinSpeech, c.MaxSpeech)
	}
	if c.BatchSize < 1 {
		return vaderr.Invalid("batch size must be at least 1 (got %d)", c.BatchSize)
	}
	return nil
}
