package control

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vadseg/internal/audio"
	"vadseg/internal/segment"
)

// NewSplitCmd writes detected speech, or everything but it, to WAV files.
func NewSplitCmd(cfgPath *string) *cobra.Command {
	var (
		flags   vadFlags
		outDir  string
		drop    bool
		collect bool
	)
	cmd := &cobra.Command{
		Use:   "split <wav> --out <dir>",
		Short: "Cut detected speech segments into separate WAV files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return fmt.Errorf("--out is required")
			}
			cfg, logger, err := loadForRun(cmd, *cfgPath, &flags)
			if err != nil {
				return err
			}
			samples, rate, err := readInput(args[0], cfg, flags.resample)
			if err != nil {
				return err
			}
			d, err := newDetector(cfg, rate, logger)
			if err != nil {
				return err
			}
			defer d.Close()
			segs, err := d.SpeechTimestamps(cmd.Context(), samples)
			if err != nil {
				return err
			}
			segs = clampSegments(segs, len(samples), rate)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			write := func(name string, data []float32) error {
				path := filepath.Join(outDir, name)
				if err := audio.WriteWAV(path, data, rate); err != nil {
					return err
				}
				fmt.Fprintln(out, path)
				return nil
			}
			switch {
			case drop:
				rest, err := audio.Drop(segs, samples, rate)
				if err != nil {
					return err
				}
				return write("nonspeech.wav", rest)
			case collect:
				speech, err := audio.Collect(segs, samples, rate)
				if err != nil {
					return err
				}
				return write("speech.wav", speech)
			}
			for i, seg := range segs {
				part, err := audio.Slice(seg, samples, rate)
				if err != nil {
					return err
				}
				if err := write(fmt.Sprintf("segment_%03d.wav", i+1), part); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addVADFlags(cmd, &flags)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	cmd.Flags().BoolVar(&drop, "drop", false, "write one file with speech removed")
	cmd.Flags().BoolVar(&collect, "collect", false, "write one file with only speech")
	cmd.MarkFlagsMutuallyExclusive("drop", "collect")
	return cmd
}

// NewGenToneCmd writes the reference signal used to sanity-check a setup.
func NewGenToneCmd() *cobra.Command {
	var rate int
	cmd := &cobra.Command{
		Use:   "gen-tone <out.wav>",
		Short: "Write 5 s of silence with 440 Hz tones at 1-2 s and 3-4 s",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.WriteWAV(args[0], audio.ReferenceSignal(rate), rate); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), args[0])
			return err
		},
	}
	cmd.Flags().IntVar(&rate, "rate", 16000, "sample rate")
	return cmd
}

// clampSegments cuts padded ends that run past the audio.
func clampSegments(segs []segment.Segment, n, rate int) []segment.Segment {
	limit := time.Duration(n) * time.Second / time.Duration(rate)
	out := make([]segment.Segment, len(segs))
	for i, seg := range segs {
		seg.End = min(seg.End, limit)
		out[i] = seg
	}
	return out
}
