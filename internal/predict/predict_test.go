package predict

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vadseg/internal/frame"
	"vadseg/internal/vaderr"
)

func sine(n, rate int, hz, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*hz*float64(i)/float64(rate)))
	}
	return out
}

func mustFrame(t *testing.T, samples []float32, rate int) frame.Frame {
	t.Helper()
	f, err := frame.New(samples, rate)
	require.NoError(t, err)
	return f
}

func TestStateShapeResetClone(t *testing.T) {
	s := NewState(4)
	assert.Equal(t, 0, s.Slots())
	assert.True(t, s.Shape(2, 16000))
	assert.False(t, s.Shape(2, 16000), "same shape keeps context")
	epoch := s.Epoch()

	s.Slot(1)[3] = 7
	cp := s.Clone()
	cp.Slot(1)[3] = 9
	assert.Equal(t, float32(7), s.Slot(1)[3], "clone must be deep")

	assert.True(t, s.Shape(3, 16000), "batch size change resets")
	assert.Greater(t, s.Epoch(), epoch)
	assert.Equal(t, float32(0), s.Slot(1)[3])

	s.Slot(0)[0] = 1
	assert.True(t, s.Shape(3, 8000), "sample rate change resets")
	assert.Equal(t, float32(0), s.Slot(0)[0])

	s.Slot(2)[1] = 5
	before := s.Epoch()
	s.Reset()
	assert.Equal(t, float32(0), s.Slot(2)[1])
	assert.Equal(t, 3, s.Slots())
	assert.Equal(t, before+1, s.Epoch())
}

func TestCheckBatch(t *testing.T) {
	f16 := mustFrame(t, make([]float32, 512), 16000)
	f8 := mustFrame(t, make([]float32, 256), 8000)

	s := NewState(1)
	s.Shape(1, 16000)
	require.NoError(t, CheckBatch([]frame.Frame{f16}, s))

	cases := map[string]struct {
		frames []frame.Frame
		state  *State
	}{
		"empty":      {nil, s},
		"nil state":  {[]frame.Frame{f16}, nil},
		"slot count": {[]frame.Frame{f16, f16}, s},
		"rate":       {[]frame.Frame{f8}, s},
		"unshaped":   {[]frame.Frame{f16}, NewState(1)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, CheckBatch(c.frames, c.state), vaderr.ErrInvalidInput)
		})
	}
}

func TestNewSelectsKind(t *testing.T) {
	p, err := New(Options{Kind: "energy", SampleRate: 16000})
	require.NoError(t, err)
	assert.IsType(t, &Energy{}, p)

	p, err = New(Options{Kind: "", SampleRate: 8000})
	require.NoError(t, err)
	assert.IsType(t, &Energy{}, p)

	p, err = New(Options{Kind: "WebRTC", SampleRate: 16000, Aggressiveness: 2})
	require.NoError(t, err)
	assert.IsType(t, &WebRTC{}, p)

	_, err = New(Options{Kind: "silero", SampleRate: 16000})
	assert.ErrorIs(t, err, vaderr.ErrInvalidInput)
	_, err = New(Options{Kind: "energy", SampleRate: 44100})
	assert.ErrorIs(t, err, vaderr.ErrInvalidInput)
	_, err = New(Options{Kind: "webrtc", SampleRate: 16000, Aggressiveness: 4})
	assert.ErrorIs(t, err, vaderr.ErrInvalidInput)
}

func TestEnergySilenceToneAndRumble(t *testing.T) {
	ctx := context.Background()
	for _, rate := range []int{8000, 16000} {
		n, err := frame.Size(rate)
		require.NoError(t, err)
		e, err := NewEnergy(0)
		require.NoError(t, err)
		s := NewState(e.StateWidth())
		s.Shape(3, rate)

		frames := []frame.Frame{
			mustFrame(t, make([]float32, n), rate),
			mustFrame(t, sine(n, rate, 440, 0.5), rate),
			mustFrame(t, sine(n, rate, 50, 0.5), rate),
		}
		probs, err := e.Predict(ctx, frames, s)
		require.NoError(t, err)
		require.Len(t, probs, 3)
		assert.Equal(t, 0.0, probs[0], "digital silence at %d Hz", rate)
		assert.Greater(t, probs[1], 0.8, "voice-band tone at %d Hz", rate)
		assert.Less(t, probs[2], 0.3, "rumble below the voice band at %d Hz", rate)
		for _, p := range probs {
			assert.True(t, p >= 0 && p <= 1)
		}

		tone := frames[1].Samples()
		assert.Equal(t, tone[n-energyContext:], s.Slot(1), "slot keeps the frame tail as context")
	}
}

func TestEnergyRejectsBadInput(t *testing.T) {
	e, err := NewEnergy(0.05)
	require.NoError(t, err)
	s := NewState(3)
	s.Shape(1, 16000)
	_, err = e.Predict(context.Background(), []frame.Frame{mustFrame(t, make([]float32, 512), 16000)}, s)
	assert.ErrorIs(t, err, vaderr.ErrInvalidInput, "state width mismatch")

	_, err = NewEnergy(math.NaN())
	assert.ErrorIs(t, err, vaderr.ErrInvalidInput)
}

func TestEnergyHonoursContext(t *testing.T) {
	e, err := NewEnergy(0)
	require.NoError(t, err)
	s := NewState(e.StateWidth())
	s.Shape(1, 16000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Predict(ctx, []frame.Frame{mustFrame(t, make([]float32, 512), 16000)}, s)
	assert.ErrorIs(t, err, vaderr.ErrPrediction)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWebRTCSilence(t *testing.T) {
	w, err := NewWebRTC(3)
	require.NoError(t, err)
	defer w.Close()
	s := NewState(w.StateWidth())
	s.Shape(2, 16000)
	frames := []frame.Frame{
		mustFrame(t, make([]float32, 512), 16000),
		mustFrame(t, make([]float32, 512), 16000),
	}
	probs, err := w.Predict(context.Background(), frames, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, probs)

	s.Reset()
	_, err = w.Predict(context.Background(), frames, s)
	require.NoError(t, err)
	assert.Equal(t, s.Epoch(), w.epoch, "handles rebound to the new epoch")
}

// toneStream builds n frames of silence, then n of a 440 Hz tone, then n of silence.
func toneStream(t *testing.T, n, rate int) []frame.Frame {
	t.Helper()
	size, err := frame.Size(rate)
	require.NoError(t, err)
	var out []frame.Frame
	for i := 0; i < 3*n; i++ {
		samples := make([]float32, size)
		if i >= n && i < 2*n {
			samples = sine(size, rate, 440, 0.5)
		}
		out = append(out, mustFrame(t, samples, rate))
	}
	return out
}

// predictInBatches runs frames through p in batches of size on one state.
func predictInBatches(t *testing.T, p Predictor, frames []frame.Frame, size int) []float64 {
	t.Helper()
	require.Zero(t, len(frames)%size)
	s := NewState(p.StateWidth())
	s.Shape(size, frames[0].SampleRate())
	var out []float64
	for start := 0; start < len(frames); start += size {
		probs, err := p.Predict(context.Background(), frames[start:start+size], s)
		require.NoError(t, err)
		out = append(out, probs...)
	}
	return out
}

func TestWebRTCDetectsTone(t *testing.T) {
	for _, rate := range []int{8000, 16000} {
		w, err := NewWebRTC(2)
		require.NoError(t, err)
		frames := toneStream(t, 10, rate)
		s := NewState(w.StateWidth())
		s.Shape(len(frames), rate)
		probs, err := w.Predict(context.Background(), frames, s)
		require.NoError(t, err)
		require.Len(t, probs, len(frames))
		assert.Equal(t, 0.0, probs[0], "silence at %d Hz", rate)
		assert.GreaterOrEqual(t, probs[19], 0.5, "tone at %d Hz", rate)
		for _, p := range probs {
			assert.True(t, p >= 0 && p <= 1)
		}
		require.NoError(t, w.Close())
	}
}

func TestPredictorsThreadContextThroughBatches(t *testing.T) {
	frames := toneStream(t, 10, 16000)
	builders := map[string]func() (Predictor, error){
		"energy": func() (Predictor, error) { return NewEnergy(0) },
		"webrtc": func() (Predictor, error) { return NewWebRTC(2) },
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			var want []float64
			for _, size := range []int{1, 5, 30} {
				p, err := build()
				require.NoError(t, err)
				got := predictInBatches(t, p, frames, size)
				require.Len(t, got, len(frames))
				if want == nil {
					want = got
					continue
				}
				assert.Equal(t, want, got, "batch size %d", size)
			}
		})
	}
}

func TestWebRTCRebuildsHandleUnlessContinued(t *testing.T) {
	w, err := NewWebRTC(2)
	require.NoError(t, err)
	frames := toneStream(t, 1, 16000)[1:2]
	s := NewState(w.StateWidth())
	s.Shape(1, 16000)
	ctx := context.Background()

	_, err = w.Predict(ctx, frames, s)
	require.NoError(t, err)
	h := w.vad
	_, err = w.Predict(ctx, frames, s)
	require.NoError(t, err)
	assert.Same(t, h, w.vad, "a continued stream keeps its handle")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = w.Predict(cancelled, frames, s)
	assert.ErrorIs(t, err, vaderr.ErrPrediction)
	_, err = w.Predict(ctx, frames, s)
	require.NoError(t, err)
	assert.NotSame(t, h, w.vad, "a failed call must not leave its half-fed handle behind")

	h = w.vad
	_, err = w.Predict(ctx, frames, s.Clone())
	require.NoError(t, err)
	_, err = w.Predict(ctx, frames, s)
	require.NoError(t, err)
	assert.NotSame(t, h, w.vad, "a discarded state is not continued")
}
