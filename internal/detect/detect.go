// Package detect drives a predictor and the segmentation engine over audio.
//
// A Detector serves one stream through three entry points that share a single
// engine: ProcessFrame for live audio, ProcessBatch for pre-framed audio and
// SpeechTimestamps for a whole buffer. Only SpeechTimestamps applies the
// min/max speech duration filter; streaming callers filter for themselves.
package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"vadseg/internal/frame"
	"vadseg/internal/predict"
	"vadseg/internal/segment"
	"vadseg/internal/vaderr"
)

// Detector is owned by one goroutine.
type Detector struct {
	cfg       Config
	predictor predict.Predictor
	engine    *segment.Engine
	state     *predict.State
	frameDur  time.Duration
	lastProb  float64
	log       logrus.FieldLogger
}

// New validates cfg and returns a detector using p. The detector takes
// ownership of p and closes it in Close.
func New(cfg Config, p predict.Predictor, log logrus.FieldLogger) (*Detector, error) {
	if p == nil {
		return nil, vaderr.Invalid("predictor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, err := segment.NewEngine(cfg.engineOptions())
	if err != nil {
		return nil, err
	}
	dur, err := frame.Duration(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Detector{
		cfg:       cfg,
		predictor: p,
		engine:    engine,
		state:     predict.NewState(p.StateWidth()),
		frameDur:  dur,
		log:       log,
	}, nil
}

// Config returns the active configuration.
func (d *Detector) Config() Config { return d.cfg }

// Probability is the probability of the last frame processed.
func (d *Detector) Probability() float64 { return d.lastProb }

// Elapsed is the stream time consumed since the last reset.
func (d *Detector) Elapsed() time.Duration { return d.engine.Elapsed() }

// InSpeech reports whether a segment is open.
func (d *Detector) InSpeech() bool { return d.engine.InSpeech() }

// ProcessFrame runs one frame of samples. It returns the segment the frame
// closed, if any. Durations are not filtered. On error nothing changes and
// the same frame may be retried.
func (d *Detector) ProcessFrame(ctx context.Context, samples []float32) (segment.Segment, bool, error) {
	f, err := frame.New(samples, d.cfg.SampleRate)
	if err != nil {
		return segment.Segment{}, false, err
	}
	segs, err := d.run(ctx, []frame.Frame{f})
	if err != nil || len(segs) == 0 {
		return segment.Segment{}, false, err
	}
	return segs[0], true, nil
}

// ProcessBatch runs the frames through the predictor in one call and returns
// every segment they closed, unfiltered.
func (d *Detector) ProcessBatch(ctx context.Context, frames [][]float32) ([]segment.Segment, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	batch := make([]frame.Frame, len(frames))
	for i, samples := range frames {
		f, err := frame.New(samples, d.cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		batch[i] = f
	}
	return d.run(ctx, batch)
}

// SpeechTimestamps treats samples as a complete new stream: it resets the
// detector, runs every full frame in batches of BatchSize and returns the
// segments that pass the duration filter. A trailing partial frame is
// ignored, as is a segment still open at the end. The first error aborts.
func (d *Detector) SpeechTimestamps(ctx context.Context, samples []float32) ([]segment.Segment, error) {
	frames, err := frame.Split(samples, d.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	d.Reset()
	var raw []segment.Segment
	for i, batch := range frame.Batches(frames, d.cfg.BatchSize) {
		segs, err := d.run(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		d.log.WithFields(logrus.Fields{
			"batch":    i,
			"frames":   len(batch),
			"segments": len(segs),
			"elapsed":  d.engine.Elapsed(),
		}).Debug("batch processed")
		raw = append(raw, segs...)
	}
	kept, err := segment.Filter(raw, d.cfg.MinSpeech, d.cfg.MaxSpeech)
	if err != nil {
		return nil, err
	}
	if dropped := len(raw) - len(kept); dropped > 0 {
		d.log.WithFields(logrus.Fields{"dropped": dropped, "kept": len(kept)}).Debug("duration filter")
	}
	return kept, nil
}

// run predicts a batch on a copy of the state and only commits the copy and
// feeds the engine once the whole batch has valid probabilities.
//
// A context cancelled before the call is returned as is; it is not a
// prediction failure.
func (d *Detector) run(ctx context.Context, frames []frame.Frame) ([]segment.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	work := d.state.Clone()
	if work.Shape(len(frames), d.cfg.SampleRate) && d.state.Slots() != 0 {
		d.log.WithFields(logrus.Fields{
			"from_slots": d.state.Slots(),
			"to_slots":   len(frames),
			"from_rate":  d.state.SampleRate(),
			"to_rate":    d.cfg.SampleRate,
		}).Debug("predictor state reshaped, context zeroed")
	}
	probs, err := d.predictor.Predict(ctx, frames, work)
	if err != nil {
		return nil, vaderr.Prediction(err)
	}
	if len(probs) != len(frames) {
		return nil, fmt.Errorf("%w: %d probabilities for %d frames", vaderr.ErrPrediction, len(probs), len(frames))
	}
	for i, p := range probs {
		if err := segment.CheckProbability(p); err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", vaderr.ErrPrediction, i, err)
		}
	}

	d.state = work
	var out []segment.Segment
	for _, p := range probs {
		seg, ok, err := d.engine.ProcessFrame(p, d.frameDur)
		if err != nil {
			return out, err
		}
		d.lastProb = p
		if ok {
			d.state.Reset()
			out = append(out, seg)
		}
	}
	return out, nil
}

// Flush closes a segment left open by the last frames. It is never applied
// implicitly.
func (d *Detector) Flush() (segment.Segment, bool) {
	seg, ok := d.engine.Flush()
	if ok {
		d.state.Reset()
	}
	return seg, ok
}

// Reset starts a new stream: engine marks and clock cleared, predictor
// context zeroed.
func (d *Detector) Reset() {
	d.engine.Reset()
	d.state.Reset()
	d.lastProb = 0
}

// Reconfigure swaps in a new configuration and resets the detector.
func (d *Detector) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := segment.NewEngine(cfg.engineOptions())
	if err != nil {
		return err
	}
	dur, err := frame.Duration(cfg.SampleRate)
	if err != nil {
		return err
	}
	d.cfg, d.engine, d.frameDur = cfg, engine, dur
	d.state = predict.NewState(d.predictor.StateWidth())
	d.lastProb = 0
	return nil
}

// Close releases the predictor.
func (d *Detector) Close() error {
	return d.predictor.Close()
}
