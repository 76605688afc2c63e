// Package mock provides a scripted Predictor for tests.
//
// Probabilities come from ByFrame when set, otherwise from Script in order
// (one entry per frame, Default once exhausted). Script is only consumed by
// successful calls, so a failed call followed by a retry sees the same values.
//
// Example:
//
//	p := &mock.Predictor{Script: []float64{0.1, 0.9, 0.9, 0.1}}
//	p.FailNext, p.PredictErr = 1, errors.New("busy")
package mock

import (
	"context"
	"sync"

	"vadseg/internal/frame"
	"vadseg/internal/predict"
	"vadseg/internal/vaderr"
)

// PredictCall records a single Predict invocation.
type PredictCall struct {
	// Frames is the batch size.
	Frames int
	// Epoch is the state epoch the call observed.
	Epoch uint64
	// SampleRate is the rate the state was shaped for.
	SampleRate int
	// Failed reports whether the call returned an error.
	Failed bool
}

// Predictor is a mock implementation of predict.Predictor.
type Predictor struct {
	mu sync.Mutex

	// Script supplies probabilities in frame order.
	Script []float64
	// Default is returned once Script is exhausted.
	Default float64
	// ByFrame, if set, derives the probability from the frame itself.
	ByFrame func(frame.Frame) float64

	// Width is reported by StateWidth. Slot 0 of every position counts the
	// frames seen since the last reset.
	Width int

	// PredictErr is returned (as a prediction failure) by the next FailNext calls.
	PredictErr error
	FailNext   int

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	Calls          []PredictCall
	CloseCallCount int

	pos int
}

func (p *Predictor) StateWidth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Width
}

// Predict records the call and returns scripted probabilities.
func (p *Predictor) Predict(ctx context.Context, frames []frame.Frame, state *predict.State) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := predict.CheckBatch(frames, state); err != nil {
		return nil, err
	}
	call := PredictCall{Frames: len(frames), Epoch: state.Epoch(), SampleRate: state.SampleRate()}
	if p.FailNext > 0 && p.PredictErr != nil {
		p.FailNext--
		call.Failed = true
		p.Calls = append(p.Calls, call)
		return nil, vaderr.Prediction(p.PredictErr)
	}
	if err := ctx.Err(); err != nil {
		call.Failed = true
		p.Calls = append(p.Calls, call)
		return nil, vaderr.Prediction(err)
	}
	out := make([]float64, len(frames))
	for i, f := range frames {
		switch {
		case p.ByFrame != nil:
			out[i] = p.ByFrame(f)
		case p.pos < len(p.Script):
			out[i] = p.Script[p.pos]
			p.pos++
		default:
			out[i] = p.Default
		}
		if state.Width() > 0 {
			state.Slot(i)[0]++
		}
	}
	p.Calls = append(p.Calls, call)
	return out, nil
}

// Close records the call and returns CloseErr.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return p.CloseErr
}

// Remaining reports how many scripted probabilities have not been consumed.
func (p *Predictor) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Script) - p.pos
}

// Ensure Predictor implements predict.Predictor at compile time.
var _ predict.Predictor = (*Predictor)(nil)
