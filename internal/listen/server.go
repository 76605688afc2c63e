// Package listen runs a detector over a live or recorded audio source and
// dispatches segments to the hook, metrics and the caller.
package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"vadseg/internal/config"
	"vadseg/internal/detect"
	"vadseg/internal/frame"
	"vadseg/internal/hook"
	"vadseg/internal/metrics"
	"vadseg/internal/predict"
	"vadseg/internal/segment"
	"vadseg/internal/vaderr"
)

// Source produces mono samples at a fixed rate. Read returns io.EOF once the
// source is exhausted.
type Source interface {
	Name() string
	SampleRate() int
	Read(ctx context.Context) ([]float32, error)
	Close() error
}

// Options tunes a Server.
type Options struct {
	// Hook enables the segment hook.
	Hook bool
	// Flush emits a segment still open when the source ends.
	Flush bool
	// Retries is how often a frame is retried after a prediction failure.
	Retries int
	// OnSegment is called for every emitted segment.
	OnSegment func(segment.Segment)
	// OnFrame is called after every frame with its probability.
	OnFrame func(elapsed time.Duration, prob float64)
}

// Server drives one stream.
type Server struct {
	cfg      *config.Config
	logger   logrus.FieldLogger
	opts     Options
	detector *detect.Detector
	metrics  *metrics.Metrics
	hook     *hook.Runner
	hookCh   chan hook.Job
	source   string

	wg sync.WaitGroup
}

// New builds the predictor and detector described by cfg. m may be nil.
func New(cfg *config.Config, logger logrus.FieldLogger, m *metrics.Metrics, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := predict.New(cfg.PredictorOptions())
	if err != nil {
		return nil, err
	}
	return newServer(cfg, logger, m, p, opts)
}

func newServer(cfg *config.Config, logger logrus.FieldLogger, m *metrics.Metrics, p predict.Predictor, opts Options) (*Server, error) {
	if m != nil {
		p = metrics.Instrument(p, m)
	}
	det, err := detect.New(cfg.Detection(), p, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		opts:     opts,
		detector: det,
		metrics:  m,
	}
	if opts.Hook {
		r, err := hook.NewRunner(cfg, logger)
		if err != nil {
			_ = det.Close()
			return nil, err
		}
		if !r.Enabled() {
			_ = det.Close()
			return nil, fmt.Errorf("%w: hook requested but hook.command is empty", vaderr.ErrInvalidInput)
		}
		s.hook = r
		s.hookCh = make(chan hook.Job, max(1, cfg.Hook.QueueSize))
	}
	return s, nil
}

// Run consumes src until it ends or ctx is cancelled. The source is closed
// on return.
func (s *Server) Run(ctx context.Context, src Source) (err error) {
	defer func() {
		var closeErr *multierror.Error
		if cerr := s.detector.Close(); cerr != nil {
			closeErr = multierror.Append(closeErr, fmt.Errorf("close detector: %w", cerr))
		}
		if cerr := src.Close(); cerr != nil {
			closeErr = multierror.Append(closeErr, fmt.Errorf("close %s: %w", src.Name(), cerr))
		}
		if err == nil {
			err = closeErr.ErrorOrNil()
		}
	}()

	if src.SampleRate() != s.cfg.Audio.SampleRate {
		return vaderr.Invalid("source %s runs at %d Hz, config expects %d", src.Name(), src.SampleRate(), s.cfg.Audio.SampleRate)
	}
	size, err := frame.Size(src.SampleRate())
	if err != nil {
		return err
	}
	s.source = src.Name()

	workerCtx, cancel := context.WithCancel(context.Background())
	defer func() {
		if s.hookCh != nil {
			close(s.hookCh)
		}
		s.wg.Wait()
		cancel()
	}()
	if s.hook != nil {
		s.wg.Add(1)
		go s.hookWorker(workerCtx)
	}

	s.logger.Infof("listening on %s @ %d Hz", src.Name(), src.SampleRate())
	var pending []float32
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", src.Name(), err)
		}
		pending = append(pending, chunk...)
		for len(pending) >= size {
			if err := s.processFrame(ctx, pending[:size]); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			pending = pending[size:]
		}
	}
	if len(pending) > 0 {
		s.logger.Debugf("discarding %d trailing samples", len(pending))
	}
	if s.opts.Flush {
		if seg, ok := s.detector.Flush(); ok {
			s.handleSegment(seg)
		}
	} else if s.detector.InSpeech() {
		s.logger.Info("stream ended inside speech; open segment dropped")
	}
	return nil
}

func (s *Server) processFrame(ctx context.Context, samples []float32) error {
	var (
		seg segment.Segment
		ok  bool
		err error
	)
	for attempt := 0; ; attempt++ {
		seg, ok, err = s.detector.ProcessFrame(ctx, samples)
		if err == nil || !errors.Is(err, vaderr.ErrPrediction) || attempt >= s.opts.Retries || ctx.Err() != nil {
			break
		}
		s.logger.Warnf("prediction failed, retrying frame (%d/%d): %v", attempt+1, s.opts.Retries, err)
	}
	if err != nil {
		return fmt.Errorf("at %s: %w", s.detector.Elapsed(), err)
	}
	if s.opts.OnFrame != nil {
		s.opts.OnFrame(s.detector.Elapsed(), s.detector.Probability())
	}
	if s.metrics != nil {
		s.metrics.SetInSpeech(s.detector.InSpeech())
	}
	if ok {
		s.handleSegment(seg)
	}
	return nil
}

func (s *Server) handleSegment(seg segment.Segment) {
	s.logger.WithFields(logrus.Fields{
		"start":    seg.StartSeconds(),
		"end":      seg.EndSeconds(),
		"duration": seg.Duration().Seconds(),
	}).Info("speech segment")
	if s.metrics != nil {
		s.metrics.ObserveSegment(seg)
		s.metrics.SetInSpeech(false)
	}
	if s.opts.OnSegment != nil {
		s.opts.OnSegment(seg)
	}
	if s.hook == nil {
		return
	}
	if !s.hook.Accepts(seg) || !s.hook.ShouldRun() {
		s.logger.Debug("hook skipped (cooldown or too short)")
		s.incHook(func(m *metrics.Metrics) { m.HooksSkipped.Inc() })
		return
	}
	job := hook.Job{Segment: seg, Source: s.source, Timestamp: time.Now()}
	select {
	case s.hookCh <- job:
	default:
		s.incHook(func(m *metrics.Metrics) { m.HooksDropped.Inc() })
		s.logger.Warn("hook queue full, dropping job")
	}
}

func (s *Server) incHook(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
