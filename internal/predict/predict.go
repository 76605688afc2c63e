// Package predict defines the speech probability predictor the segmentation
// engine consumes, the recurrent State threaded through it, and the built-in
// implementations.
//
// A Predictor is owned by one stream at a time. Implementations may evaluate
// the frames of a batch in any order internally but must return one
// probability per frame in the order the frames were given.
package predict

import (
	"context"
	"fmt"
	"io"
	"strings"

	"vadseg/internal/frame"
	"vadseg/internal/vaderr"
)

// Predictor kinds accepted by New.
const (
	KindEnergy = "energy"
	KindWebRTC = "webrtc"
)

// Predictor turns frames into speech probabilities.
type Predictor interface {
	io.Closer

	// StateWidth is the number of context floats the predictor keeps per slot.
	StateWidth() int

	// Predict returns one probability in [0,1] per frame. state must be
	// shaped for len(frames) slots at the frames' sample rate; the predictor
	// updates it in place. Precondition violations fail with
	// vaderr.ErrInvalidInput before any inference; inference failures wrap
	// vaderr.ErrPrediction.
	Predict(ctx context.Context, frames []frame.Frame, state *State) ([]float64, error)
}

// Options selects and tunes a predictor.
type Options struct {
	Kind       string
	SampleRate int

	// ReferenceRMS is the RMS level the energy predictor maps to full confidence.
	ReferenceRMS float64
	// Aggressiveness is the WebRTC VAD mode, 0 (least) to 3 (most aggressive).
	Aggressiveness int
}

// New builds the predictor named by opts.Kind.
func New(opts Options) (Predictor, error) {
	if _, err := frame.Size(opts.SampleRate); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindEnergy:
		return NewEnergy(opts.ReferenceRMS)
	case KindWebRTC:
		return NewWebRTC(opts.Aggressiveness)
	default:
		return nil, vaderr.Invalid("unknown predictor kind %q (want %s or %s)", opts.Kind, KindEnergy, KindWebRTC)
	}
}

// CheckBatch validates the Predict preconditions.
func CheckBatch(frames []frame.Frame, state *State) error {
	if len(frames) == 0 {
		return vaderr.Invalid("empty batch")
	}
	if state == nil {
		return vaderr.Invalid("nil predictor state")
	}
	if state.Slots() != len(frames) {
		return vaderr.Invalid("batch of %d frames does not match state shaped for %d slots", len(frames), state.Slots())
	}
	want, err := frame.Size(state.SampleRate())
	if err != nil {
		return err
	}
	for i, f := range frames {
		if f.SampleRate() != state.SampleRate() {
			return vaderr.Invalid("frame %d at %d Hz, state at %d Hz", i, f.SampleRate(), state.SampleRate())
		}
		if f.Len() != want {
			return vaderr.Invalid("frame %d has %d samples, want %d", i, f.Len(), want)
		}
	}
	return nil
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return vaderr.Prediction(fmt.Errorf("predict: %w", err))
	}
	return nil
}
