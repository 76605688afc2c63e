package control

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vadseg/internal/config"
	"vadseg/internal/listen"
	"vadseg/internal/logging"
	"vadseg/internal/metrics"
	"vadseg/internal/segment"
)

// NewListenCmd segments live microphone audio until interrupted.
func NewListenCmd(cfgPath *string) *cobra.Command {
	var (
		metricsAddr string
		useHook     bool
		retries     int
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Segment live microphone audio (needs -tags portaudio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				m = metrics.New(cfg.VAD.Threshold)
			}
			src, err := listen.OpenMic(cfg, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			srv, err := listen.New(cfg, logger, m, listen.Options{
				Hook:    useHook,
				Retries: retries,
				OnSegment: func(s segment.Segment) {
					fmt.Fprintf(out, "%.3f\t%.3f\n", s.StartSeconds(), s.EndSeconds())
				},
			})
			if err != nil {
				_ = src.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			runCtx, cancel := context.WithCancel(ctx)
			if m != nil {
				g.Go(func() error { return m.Serve(runCtx, cfg.Metrics.Addr, logger) })
			}
			g.Go(func() error {
				defer cancel()
				return srv.Run(runCtx, src)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	cmd.Flags().BoolVar(&useHook, "hook", false, "run hook.command for every segment")
	cmd.Flags().IntVar(&retries, "retries", 2, "retries per frame after a prediction failure")
	return cmd
}

// NewMicCmd groups mic subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "Microphone management",
	}
	cmd.AddCommand(newMicListCmd())
	cmd.AddCommand(newMicSetCmd(cfgPath))
	return cmd
}

func newMicListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := listen.InputDevices()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newMicSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Set microphone device name in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cfg.Audio.DeviceName = args[0]
			cfg.Audio.DeviceIndex = -1
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mic set to %q in %s\n", args[0], cfg.Paths.ConfigPath)
			return nil
		},
	}
}
