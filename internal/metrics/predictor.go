package metrics

import (
	"context"
	"time"

	"vadseg/internal/frame"
	"vadseg/internal/predict"
)

// instrumented times every predictor call and records its outcome.
type instrumented struct {
	predict.Predictor
	m *Metrics
}

// Instrument wraps p so that every call feeds m.
func Instrument(p predict.Predictor, m *Metrics) predict.Predictor {
	return &instrumented{Predictor: p, m: m}
}

func (i *instrumented) Predict(ctx context.Context, frames []frame.Frame, state *predict.State) ([]float64, error) {
	start := time.Now()
	probs, err := i.Predictor.Predict(ctx, frames, state)
	i.m.PredictDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		i.m.PredictFailures.Inc()
		return nil, err
	}
	if len(frames) > 0 {
		i.m.ObserveFrames(probs, frames[0].Duration())
	}
	return probs, nil
}
