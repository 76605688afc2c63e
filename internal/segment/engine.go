package segment

import (
	"math"
	"time"

	"vadseg/internal/vaderr"
)

// Options tunes the state machine.
type Options struct {
	// Threshold is the probability at or above which a frame counts as speech.
	Threshold float64
	// MinSilence is how long probabilities must stay below Threshold before
	// an open segment is closed.
	MinSilence time.Duration
	// SpeechPad is appended to the end of every emitted segment.
	SpeechPad time.Duration
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return vaderr.Invalid("threshold must be within [0,1] (got %v)", o.Threshold)
	}
	if o.MinSilence < 0 {
		return vaderr.Invalid("min silence must not be negative (got %s)", o.MinSilence)
	}
	if o.SpeechPad < 0 {
		return vaderr.Invalid("speech pad must not be negative (got %s)", o.SpeechPad)
	}
	return nil
}

// CheckProbability rejects values a predictor must never produce.
func CheckProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return vaderr.Invalid("probability must be within [0,1] (got %v)", p)
	}
	return nil
}

// mark is an optional timestamp.
type mark struct {
	at  time.Duration
	set bool
}

// Engine turns a sequence of per-frame speech probabilities into segments.
//
// It is Idle until a frame reaches the threshold, then InSpeech until the
// probability has stayed below the threshold for MinSilence. Timestamps refer
// to the end of the frame that caused them. A segment still open when the
// input stops is not emitted.
//
// An Engine belongs to one stream and must not be used concurrently.
type Engine struct {
	opts    Options
	start   mark
	end     mark
	elapsed time.Duration
}

// NewEngine validates opts and returns an Idle engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Options returns the configuration the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// ProcessFrame consumes the probability of the next frame, which lasts
// frameDur. It returns the segment closed by this frame, if any. Invalid
// arguments leave the engine untouched.
func (e *Engine) ProcessFrame(prob float64, frameDur time.Duration) (Segment, bool, error) {
	if err := CheckProbability(prob); err != nil {
		return Segment{}, false, err
	}
	if frameDur <= 0 {
		return Segment{}, false, vaderr.Invalid("frame duration must be positive (got %s)", frameDur)
	}

	e.elapsed += frameDur
	now := e.elapsed

	if prob >= e.opts.Threshold {
		if !e.start.set {
			e.start = mark{at: now, set: true}
		}
		e.end = mark{at: now, set: true}
		return Segment{}, false, nil
	}
	if !e.start.set {
		return Segment{}, false, nil
	}
	if now-e.end.at < e.opts.MinSilence {
		return Segment{}, false, nil
	}
	seg := Segment{Start: e.start.at, End: e.end.at + e.opts.SpeechPad}
	e.start, e.end = mark{}, mark{}
	return seg, true, nil
}

// InSpeech reports whether a segment is open.
func (e *Engine) InSpeech() bool { return e.start.set }

// Elapsed is the stream time consumed so far.
func (e *Engine) Elapsed() time.Duration { return e.elapsed }

// Flush closes an open segment as if enough silence had followed it. The
// stream clock keeps running.
func (e *Engine) Flush() (Segment, bool) {
	if !e.start.set {
		return Segment{}, false
	}
	seg := Segment{Start: e.start.at, End: e.end.at + e.opts.SpeechPad}
	e.start, e.end = mark{}, mark{}
	return seg, true
}

// Reset returns the engine to its freshly constructed state.
func (e *Engine) Reset() {
	e.start, e.end = mark{}, mark{}
	e.elapsed = 0
}
