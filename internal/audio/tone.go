package audio

import (
	"math"
	"time"
)

// Tone is a sine burst inside a generated signal.
type Tone struct {
	Start     time.Duration
	End       time.Duration
	Freq      float64
	Amplitude float64
}

// Synthesize renders total worth of silence at rate with the given tones
// mixed in.
func Synthesize(rate int, total time.Duration, tones ...Tone) []float32 {
	n := sampleIndex(total, rate)
	out := make([]float32, n)
	for _, t := range tones {
		from, to := sampleIndex(t.Start, rate), sampleIndex(t.End, rate)
		if from < 0 {
			from = 0
		}
		if to > n {
			to = n
		}
		for i := from; i < to; i++ {
			phase := 2 * math.Pi * t.Freq * float64(i-from) / float64(rate)
			out[i] += float32(t.Amplitude * math.Sin(phase))
		}
	}
	return out
}

// ReferenceSignal is five seconds of silence with 440 Hz tones at 1-2 s and
// 3-4 s.
func ReferenceSignal(rate int) []float32 {
	return Synthesize(rate, 5*time.Second,
		Tone{Start: time.Second, End: 2 * time.Second, Freq: 440, Amplitude: 0.5},
		Tone{Start: 3 * time.Second, End: 4 * time.Second, Freq: 440, Amplitude: 0.5},
	)
}
