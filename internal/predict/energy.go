package predict

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"vadseg/internal/frame"
	"vadseg/internal/vaderr"
)

const (
	// DefaultReferenceRMS maps roughly -34 dBFS to full confidence.
	DefaultReferenceRMS = 0.02

	energyContext = 64
	voiceBandLow  = 300.0
	voiceBandHigh = 3400.0
)

// Energy estimates speech probability from loudness and the share of spectral
// energy inside the voice band. The spectrum is taken over the tail of the
// previous frame of the stream followed by the frame itself.
//
// Slot i keeps the tail of batch item i. Frame i reads slot i-1, and the first
// frame of a call reads the last slot, so context runs through the stream in
// frame order whatever the batch size.
type Energy struct {
	referenceRMS float64
	window       []float64
}

var _ Predictor = (*Energy)(nil)

// NewEnergy returns an energy predictor. referenceRMS <= 0 selects the default.
func NewEnergy(referenceRMS float64) (*Energy, error) {
	if math.IsNaN(referenceRMS) || math.IsInf(referenceRMS, 0) {
		return nil, vaderr.Invalid("reference rms must be finite (got %v)", referenceRMS)
	}
	if referenceRMS <= 0 {
		referenceRMS = DefaultReferenceRMS
	}
	return &Energy{referenceRMS: referenceRMS}, nil
}

func (e *Energy) StateWidth() int { return energyContext }

func (e *Energy) Close() error { return nil }

func (e *Energy) Predict(ctx context.Context, frames []frame.Frame, state *State) ([]float64, error) {
	if err := CheckBatch(frames, state); err != nil {
		return nil, err
	}
	if state.Width() != energyContext {
		return nil, vaderr.Invalid("state width %d, energy predictor needs %d", state.Width(), energyContext)
	}
	probs := make([]float64, len(frames))
	for i, f := range frames {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		prev := state.Slot((i + len(frames) - 1) % len(frames))
		probs[i] = e.probability(prev, f)
		samples := f.Samples()
		copy(state.Slot(i), samples[len(samples)-energyContext:])
	}
	return probs, nil
}

func (e *Energy) probability(history []float32, f frame.Frame) float64 {
	samples := f.Samples()
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return 0
	}
	level := math.Min(1, rms/e.referenceRMS)

	n := len(history) + len(samples)
	if cap(e.window) < n {
		e.window = make([]float64, n)
	}
	w := e.window[:n]
	for i, s := range history {
		w[i] = float64(s)
	}
	for i, s := range samples {
		w[len(history)+i] = float64(s)
	}

	spectrum := fft.FFTReal(w)
	binHz := float64(f.SampleRate()) / float64(n)
	var total, band float64
	// Bin 0 is the DC offset, which says nothing about speech.
	for k := 1; k <= n/2; k++ {
		p := cmplx.Abs(spectrum[k])
		p *= p
		total += p
		if hz := float64(k) * binHz; hz >= voiceBandLow && hz <= voiceBandHigh {
			band += p
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(level * band / total)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
