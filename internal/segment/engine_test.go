package segment

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vadseg/internal/vaderr"
)

const frameDur = 32 * time.Millisecond

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Options{Threshold: 0.5, MinSilence: 100 * time.Millisecond, SpeechPad: 30 * time.Millisecond})
	require.NoError(t, err)
	return e
}

func feed(t *testing.T, e *Engine, probs ...float64) []Segment {
	t.Helper()
	var out []Segment
	for _, p := range probs {
		seg, ok, err := e.ProcessFrame(p, frameDur)
		require.NoError(t, err)
		if ok {
			out = append(out, seg)
		}
	}
	return out
}

func repeat(p float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func TestEngineOptionsValidate(t *testing.T) {
	bad := []Options{
		{Threshold: -0.1},
		{Threshold: 1.1},
		{Threshold: math.NaN()},
		{Threshold: 0.5, MinSilence: -time.Millisecond},
		{Threshold: 0.5, SpeechPad: -time.Millisecond},
	}
	for _, o := range bad {
		_, err := NewEngine(o)
		assert.ErrorIs(t, err, vaderr.ErrInvalidInput, "%+v", o)
	}
	_, err := NewEngine(Options{Threshold: 1})
	assert.NoError(t, err)
}

func TestEngineSilenceYieldsNothing(t *testing.T) {
	e := newEngine(t)
	assert.Empty(t, feed(t, e, repeat(0.1, 200)...))
	assert.False(t, e.InSpeech())
	assert.Equal(t, 200*frameDur, e.Elapsed())
}

func TestEngineEmitsAfterMinSilence(t *testing.T) {
	e := newEngine(t)
	// frames 1..3 idle, 4..10 speech, then silence
	probs := append(repeat(0.1, 3), repeat(0.9, 7)...)
	assert.Empty(t, feed(t, e, probs...))
	assert.True(t, e.InSpeech())

	// 3 silent frames = 96ms < 100ms
	assert.Empty(t, feed(t, e, repeat(0.1, 3)...))
	got := feed(t, e, 0.1)
	require.Len(t, got, 1)
	assert.Equal(t, Segment{Start: 4 * frameDur, End: 10*frameDur + 30*time.Millisecond}, got[0])
	assert.False(t, e.InSpeech())
	assert.Equal(t, 14*frameDur, e.Elapsed())
}

func TestEngineHangoverBridgesShortGaps(t *testing.T) {
	e := newEngine(t)
	probs := append(repeat(0.9, 5), repeat(0.2, 3)...)
	probs = append(probs, repeat(0.9, 5)...)
	probs = append(probs, repeat(0.2, 4)...)
	got := feed(t, e, probs...)
	require.Len(t, got, 1)
	assert.Equal(t, frameDur, got[0].Start)
	assert.Equal(t, 13*frameDur+30*time.Millisecond, got[0].End)
}

func TestEngineThresholdIsInclusive(t *testing.T) {
	e := newEngine(t)
	feed(t, e, 0.5)
	assert.True(t, e.InSpeech())
}

func TestEngineZeroMinSilenceClosesOnFirstQuietFrame(t *testing.T) {
	e, err := NewEngine(Options{Threshold: 0.5})
	require.NoError(t, err)
	got := feed(t, e, 0.9, 0.1)
	require.Len(t, got, 1)
	assert.Equal(t, Segment{Start: frameDur, End: frameDur}, got[0])
}

func TestEngineOpenSegmentIsNotEmitted(t *testing.T) {
	e := newEngine(t)
	assert.Empty(t, feed(t, e, repeat(0.9, 10)...))
	assert.True(t, e.InSpeech())

	seg, ok := e.Flush()
	require.True(t, ok)
	assert.Equal(t, Segment{Start: frameDur, End: 10*frameDur + 30*time.Millisecond}, seg)
	assert.False(t, e.InSpeech())
	assert.Equal(t, 10*frameDur, e.Elapsed())

	_, ok = e.Flush()
	assert.False(t, ok)
}

func TestEngineInvalidInputLeavesStateIntact(t *testing.T) {
	e := newEngine(t)
	feed(t, e, 0.9, 0.9)
	for _, p := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, _, err := e.ProcessFrame(p, frameDur)
		assert.ErrorIs(t, err, vaderr.ErrInvalidInput)
	}
	_, _, err := e.ProcessFrame(0.9, 0)
	assert.ErrorIs(t, err, vaderr.ErrInvalidInput)

	assert.True(t, e.InSpeech())
	assert.Equal(t, 2*frameDur, e.Elapsed())
}

func TestEngineResetEquivalence(t *testing.T) {
	probs := append(repeat(0.9, 8), repeat(0.1, 6)...)
	probs = append(probs, repeat(0.7, 3)...)

	fresh := newEngine(t)
	want := feed(t, fresh, probs...)

	used := newEngine(t)
	feed(t, used, repeat(0.9, 17)...)
	used.Reset()
	used.Reset()
	assert.Equal(t, time.Duration(0), used.Elapsed())
	assert.False(t, used.InSpeech())
	assert.Equal(t, want, feed(t, used, probs...))
}

func TestEngineSegmentsAreOrdered(t *testing.T) {
	e := newEngine(t)
	var probs []float64
	for i := 0; i < 20; i++ {
		probs = append(probs, repeat(0.8, i%5+1)...)
		probs = append(probs, repeat(0.0, i%7+1)...)
	}
	got := feed(t, e, probs...)
	require.NotEmpty(t, got)
	for i, s := range got {
		assert.LessOrEqual(t, s.Start, s.End)
		assert.GreaterOrEqual(t, s.Start, time.Duration(0))
		if i > 0 {
			assert.Greater(t, s.Start, got[i-1].Start)
		}
	}
}

func TestSegmentJSON(t *testing.T) {
	s := Segment{Start: 1250 * time.Millisecond, End: 2500 * time.Millisecond}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":1.25,"end":2.5}`, string(data))

	var back Segment
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
	assert.Equal(t, "1.25s - 2.50s", s.String())
	assert.Equal(t, 1250*time.Millisecond, s.Duration())
}
