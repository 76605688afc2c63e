// Package metrics exposes detector activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"vadseg/internal/segment"
)

// Metrics holds the collectors of one process. Each instance registers on its
// own registry.
type Metrics struct {
	Registry *prometheus.Registry

	FramesProcessed  prometheus.Counter
	SpeechFrames     prometheus.Counter
	PredictDuration  prometheus.Histogram
	PredictFailures  prometheus.Counter
	Probability      prometheus.Histogram
	SegmentsEmitted  prometheus.Counter
	SegmentDuration  prometheus.Histogram
	HooksSent        prometheus.Counter
	HooksSkipped     prometheus.Counter
	HooksDropped     prometheus.Counter
	InSpeech         prometheus.Gauge
	StreamSecondsRun prometheus.Counter

	threshold float64
}

// New creates and registers every collector. threshold decides which frames
// count as speech frames.
func New(threshold float64) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FramesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_frames_processed_total",
			Help: "Frames scored by the predictor",
		}),
		SpeechFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_speech_frames_total",
			Help: "Frames at or above the speech threshold",
		}),
		PredictDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vadseg_predict_duration_seconds",
			Help:    "Time spent in a single predictor call",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		}),
		PredictFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_predict_failures_total",
			Help: "Predictor calls that returned an error",
		}),
		Probability: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vadseg_frame_probability",
			Help:    "Distribution of per-frame speech probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		SegmentsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_segments_total",
			Help: "Speech segments emitted",
		}),
		SegmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vadseg_segment_duration_seconds",
			Help:    "Length of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 10), // 125ms to ~1m
		}),
		HooksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_hooks_sent_total",
			Help: "Hook invocations that completed",
		}),
		HooksSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_hooks_skipped_total",
			Help: "Segments not sent to the hook because of cooldown or length",
		}),
		HooksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_hooks_dropped_total",
			Help: "Segments dropped because the hook queue was full",
		}),
		InSpeech: f.NewGauge(prometheus.GaugeOpts{
			Name: "vadseg_in_speech",
			Help: "1 while a segment is open",
		}),
		StreamSecondsRun: f.NewCounter(prometheus.CounterOpts{
			Name: "vadseg_stream_seconds_total",
			Help: "Audio seconds consumed",
		}),
		threshold: threshold,
	}
}

// ObserveFrames records the probabilities of one predictor call.
func (m *Metrics) ObserveFrames(probs []float64, frameDur time.Duration) {
	for _, p := range probs {
		m.FramesProcessed.Inc()
		m.Probability.Observe(p)
		if p >= m.threshold {
			m.SpeechFrames.Inc()
		}
	}
	m.StreamSecondsRun.Add(float64(len(probs)) * frameDur.Seconds())
}

// ObserveSegment records an emitted segment.
func (m *Metrics) ObserveSegment(seg segment.Segment) {
	m.SegmentsEmitted.Inc()
	m.SegmentDuration.Observe(seg.Duration().Seconds())
}

// SetInSpeech tracks whether a segment is currently open.
func (m *Metrics) SetInSpeech(open bool) {
	if open {
		m.InSpeech.Set(1)
		return
	}
	m.InSpeech.Set(0)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
