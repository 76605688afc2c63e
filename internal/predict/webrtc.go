package predict

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"vadseg/internal/frame"
	"vadseg/internal/vaderr"
)

// webrtcWindowMS is the analysis window handed to libwebrtc; a 32 ms frame
// holds three of them and the trailing 2 ms are ignored.
const webrtcWindowMS = 10

// WebRTC wraps the libwebrtc voice activity detector. libwebrtc answers
// voiced/unvoiced per 10 ms window, so the probability of a frame is the
// voiced fraction of its windows.
//
// libwebrtc keeps its own history inside one native handle per stream, fed
// every window in frame order across batches. The handle cannot be cloned,
// so it only carries over to a call whose State is the one the previous
// successful call advanced, at the same epoch. Anything else (a reshape, a
// reset, a failed call, a state the caller discarded) rebuilds it, and the
// stream continues from empty context.
type WebRTC struct {
	mode  int
	vad   *webrtcvad.VAD
	epoch uint64
	seq   uint64
	live  bool
	pcm   []byte
}

var _ Predictor = (*WebRTC)(nil)

// NewWebRTC returns a WebRTC predictor with the given aggressiveness (0-3).
func NewWebRTC(aggressiveness int) (*WebRTC, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, vaderr.Invalid("webrtc aggressiveness must be 0-3 (got %d)", aggressiveness)
	}
	return &WebRTC{mode: aggressiveness}, nil
}

// StateWidth is zero: the context lives in the native handle.
func (w *WebRTC) StateWidth() int { return 0 }

func (w *WebRTC) Close() error {
	w.vad, w.live = nil, false
	return nil
}

func (w *WebRTC) Predict(ctx context.Context, frames []frame.Frame, state *State) ([]float64, error) {
	if err := CheckBatch(frames, state); err != nil {
		return nil, err
	}
	rate := state.SampleRate()
	window := rate * webrtcWindowMS / 1000
	if err := w.bind(state, rate, window); err != nil {
		return nil, err
	}
	// The handle advances from here on; only a completed call may be continued.
	w.live = false

	probs := make([]float64, len(frames))
	for i, f := range frames {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		samples := f.Samples()
		windows := len(samples) / window
		voiced := 0
		for j := 0; j < windows; j++ {
			pcm := w.encode(samples[j*window : (j+1)*window])
			active, err := w.vad.Process(rate, pcm)
			if err != nil {
				return nil, vaderr.Prediction(fmt.Errorf("webrtc vad frame %d: %w", i, err))
			}
			if active {
				voiced++
			}
		}
		probs[i] = float64(voiced) / float64(windows)
	}
	state.seq++
	w.seq, w.live = state.seq, true
	return probs, nil
}

// bind keeps the handle when state continues the last completed call and
// builds a fresh one otherwise.
func (w *WebRTC) bind(state *State, rate, window int) error {
	if w.live && w.vad != nil && w.epoch == state.Epoch() && w.seq == state.seq {
		return nil
	}
	v, err := webrtcvad.New()
	if err != nil {
		return vaderr.Prediction(fmt.Errorf("webrtc vad init: %w", err))
	}
	if err := v.SetMode(w.mode); err != nil {
		return vaderr.Prediction(fmt.Errorf("webrtc vad mode: %w", err))
	}
	if !v.ValidRateAndFrameLength(rate, window) {
		return vaderr.Invalid("webrtc vad cannot process %d samples at %d Hz", window, rate)
	}
	w.vad, w.epoch, w.seq, w.live = v, state.Epoch(), state.seq, false
	return nil
}

// encode converts normalized samples to 16-bit little-endian PCM.
func (w *WebRTC) encode(samples []float32) []byte {
	n := len(samples) * 2
	if cap(w.pcm) < n {
		w.pcm = make([]byte, n)
	}
	buf := w.pcm[:n]
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
	}
	return buf
}
