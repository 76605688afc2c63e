package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vadseg/internal/frame"
	"vadseg/internal/logging"
	"vadseg/internal/predict"
	"vadseg/internal/predict/mock"
	"vadseg/internal/segment"
	"vadseg/internal/vaderr"
)

func frames(t *testing.T, n int) []frame.Frame {
	t.Helper()
	out := make([]frame.Frame, n)
	for i := range out {
		f, err := frame.New(make([]float32, 512), frame.Rate16k)
		require.NoError(t, err)
		out[i] = f
	}
	return out
}

func TestInstrumentedPredictorCountsFrames(t *testing.T) {
	m := New(0.5)
	p := Instrument(&mock.Predictor{Script: []float64{0.1, 0.6, 0.9}}, m)
	state := predict.NewState(0)
	state.Shape(3, frame.Rate16k)

	probs, err := p.Predict(context.Background(), frames(t, 3), state)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.6, 0.9}, probs)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SpeechFrames))
	assert.InDelta(t, 0.096, testutil.ToFloat64(m.StreamSecondsRun), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictDuration))
}

func TestInstrumentedPredictorCountsFailures(t *testing.T) {
	m := New(0.5)
	inner := &mock.Predictor{PredictErr: errors.New("busy"), FailNext: 1}
	p := Instrument(inner, m)
	state := predict.NewState(0)
	state.Shape(1, frame.Rate16k)

	_, err := p.Predict(context.Background(), frames(t, 1), state)
	assert.ErrorIs(t, err, vaderr.ErrPrediction)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictFailures))
	assert.Zero(t, testutil.ToFloat64(m.FramesProcessed))

	require.NoError(t, p.Close())
	assert.Equal(t, 1, inner.CloseCallCount)
}

func TestSegmentsAndHandler(t *testing.T) {
	m := New(0.5)
	m.ObserveSegment(segment.Segment{Start: time.Second, End: 2 * time.Second})
	m.SetInSpeech(true)
	m.HooksSent.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SegmentsEmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InSpeech))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"vadseg_segments_total 1", "vadseg_hooks_sent_total 1", "vadseg_in_speech 1"} {
		assert.True(t, strings.Contains(body, name), "missing %q", name)
	}
}

func TestServeStopsWithContext(t *testing.T) {
	m := New(0.5)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0", logging.NewTestLogger()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
