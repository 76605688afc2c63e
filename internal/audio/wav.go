// Package audio reads and writes the PCM the detector consumes and cuts
// detected segments out of it.
package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"vadseg/internal/frame"
	"vadseg/internal/vaderr"
)

// ReadWAV decodes a PCM WAV file into mono samples in [-1,1]. Multi-channel
// input is averaged. The sample rate must be one the detector supports.
func ReadWAV(path string) ([]float32, int, error) {
	samples, rate, err := DecodeWAV(path)
	if err != nil {
		return nil, 0, err
	}
	if _, err := frame.Size(rate); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return samples, rate, nil
}

// ReadWAVAt is ReadWAV for files at any rate: audio not already at rate is
// resampled to it.
func ReadWAVAt(path string, rate int) ([]float32, error) {
	if _, err := frame.Size(rate); err != nil {
		return nil, err
	}
	samples, src, err := DecodeWAV(path)
	if err != nil {
		return nil, err
	}
	return Resample(samples, src, rate), nil
}

// DecodeWAV decodes a PCM WAV file at whatever rate it was recorded.
func DecodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, vaderr.Invalid("%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	rate := buf.Format.SampleRate
	if rate <= 0 {
		return nil, 0, vaderr.Invalid("%s: missing sample rate", path)
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth < 8 || depth > 32 {
		return nil, 0, vaderr.Invalid("%s: unsupported bit depth %d", path, depth)
	}
	chans := buf.Format.NumChannels
	if chans < 1 {
		chans = 1
	}
	return downmix(buf.Data, chans, depth), rate, nil
}

func downmix(data []int, chans, depth int) []float32 {
	scale := float64(int64(1) << (depth - 1))
	// 8-bit wav is unsigned
	offset := 0.0
	if depth == 8 {
		offset = 128
	}
	n := len(data) / chans
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < chans; c++ {
			sum += (float64(data[i*chans+c]) - offset) / scale
		}
		out[i] = float32(sum / float64(chans))
	}
	return out
}

// WriteWAV stores mono samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, rate int) error {
	if rate <= 0 {
		return vaderr.Invalid("sample rate must be positive (got %d)", rate)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		buf.Data[i] = int(math.Round(v * math.MaxInt16))
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}
