package control

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vadseg/internal/config"
	"vadseg/internal/doctor"
	"vadseg/internal/hook"
	"vadseg/internal/logging"
	"vadseg/internal/segment"
)

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tail-log",
		Short: "Show last 50 log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return tailFile(cmd, cfg.Paths.LogPath, 50)
		},
	}
}

func tailFile(cmd *cobra.Command, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
	}
	return nil
}

// NewTestHookCmd triggers the hook manually with a made-up segment.
func NewTestHookCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-hook <start-s> <end-s>",
		Short: "Send a sample segment through the hook",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			seg, err := parseSegment(args[0], args[1])
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			r, err := hook.NewRunner(cfg, logger)
			if err != nil {
				return err
			}
			job := hook.Job{Segment: seg, Source: "test-hook", Timestamp: time.Now()}
			return r.Run(cmd.Context(), job)
		},
	}
}

func parseSegment(start, end string) (segment.Segment, error) {
	s, err := strconv.ParseFloat(start, 64)
	if err != nil {
		return segment.Segment{}, fmt.Errorf("start: %w", err)
	}
	e, err := strconv.ParseFloat(end, 64)
	if err != nil {
		return segment.Segment{}, fmt.Errorf("end: %w", err)
	}
	seg := segment.Segment{
		Start: time.Duration(s * float64(time.Second)),
		End:   time.Duration(e * float64(time.Second)),
	}
	if _, err := segment.Filter([]segment.Segment{seg}, 0, 0); err != nil {
		return segment.Segment{}, err
	}
	return seg, nil
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			results := doctor.Run(cfg)
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-4s %s\n", r.Name, status, r.Detail)
			}
			if doctor.Failed(results) != 0 {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewConfigCmd groups config subcommands.
func NewConfigCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(newConfigShowCmd(cfgPath))
	cmd.AddCommand(newConfigInitCmd(cfgPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resolvePath(*cfgPath))
			return err
		},
	})
	return cmd
}

func resolvePath(path string) string {
	if path == "" {
		return config.DefaultPath()
	}
	return path
}

func newConfigShowCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file + env overrides)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			out, err := config.Marshal(cfg, cfg.Paths.ConfigPath)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newConfigInitCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config (use --force to overwrite)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolvePath(*cfgPath)
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; pass --force to overwrite", path)
			}
			cfg, err := config.Default()
			if err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}
