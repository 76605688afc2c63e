package control

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vadseg/internal/listen"
	"vadseg/internal/segment"
)

// NewStreamCmd feeds a file through the streaming path frame by frame.
func NewStreamCmd(cfgPath *string) *cobra.Command {
	var (
		flags   vadFlags
		probs   bool
		useHook bool
		flush   bool
		retries int
	)
	cmd := &cobra.Command{
		Use:   "stream <wav>",
		Short: "Run a WAV file through the streaming detector (no duration filter)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadForRun(cmd, *cfgPath, &flags)
			if err != nil {
				return err
			}
			samples, rate, err := readInput(args[0], cfg, flags.resample)
			if err != nil {
				return err
			}
			cfg.Audio.SampleRate = rate

			out := cmd.OutOrStdout()
			opts := listen.Options{
				Hook:    useHook,
				Flush:   flush,
				Retries: retries,
				OnSegment: func(s segment.Segment) {
					fmt.Fprintf(out, "segment\t%.3f\t%.3f\n", s.StartSeconds(), s.EndSeconds())
				},
			}
			if probs {
				opts.OnFrame = func(at time.Duration, p float64) {
					fmt.Fprintf(out, "%.3f\t%.4f\n", at.Seconds(), p)
				}
			}
			srv, err := listen.New(cfg, logger, nil, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, listen.NewSampleSource(args[0], samples, rate, 0))
		},
	}
	addVADFlags(cmd, &flags)
	cmd.Flags().BoolVar(&probs, "probs", false, "print every frame's probability")
	cmd.Flags().BoolVar(&useHook, "hook", false, "run hook.command for every segment")
	cmd.Flags().BoolVar(&flush, "flush", false, "emit a segment still open at end of file")
	cmd.Flags().IntVar(&retries, "retries", 2, "retries per frame after a prediction failure")
	return cmd
}
