package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vadseg/internal/config"
	"vadseg/internal/segment"
)

type fileResult struct {
	File     string            `json:"file"`
	Segments []segment.Segment `json:"segments"`
}

// NewDetectCmd prints the speech timestamps of whole files.
func NewDetectCmd(cfgPath *string) *cobra.Command {
	var (
		flags  vadFlags
		asJSON bool
		jobs   int
	)
	cmd := &cobra.Command{
		Use:   "detect <wav>...",
		Short: "Print speech timestamps of WAV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadForRun(cmd, *cfgPath, &flags)
			if err != nil {
				return err
			}
			results, err := detectFiles(cmd.Context(), cfg, logger, args, flags.resample, jobs)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), results, asJSON)
		},
	}
	addVADFlags(cmd, &flags)
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "files processed concurrently")
	return cmd
}

// detectFiles runs every file on its own detector. Results keep the order
// of paths; the first failure cancels the rest.
func detectFiles(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, paths []string, resample bool, jobs int) ([]fileResult, error) {
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, jobs))
	for i, path := range paths {
		g.Go(func() error {
			segs, err := detectFile(ctx, cfg, logger.WithField("file", path), path, resample)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = fileResult{File: path, Segments: segs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func detectFile(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, path string, resample bool) ([]segment.Segment, error) {
	samples, rate, err := readInput(path, cfg, resample)
	if err != nil {
		return nil, err
	}
	d, err := newDetector(cfg, rate, logger)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.SpeechTimestamps(ctx, samples)
}

func writeResults(w io.Writer, results []fileResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		if len(results) > 1 {
			if _, err := fmt.Fprintf(w, "%s\n", r.File); err != nil {
				return err
			}
		}
		for _, s := range r.Segments {
			if _, err := fmt.Fprintf(w, "%.3f\t%.3f\n", s.StartSeconds(), s.EndSeconds()); err != nil {
				return err
			}
		}
	}
	return nil
}
