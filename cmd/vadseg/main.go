package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vadseg/internal/control"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "vadseg",
		Short: "vadseg — speech segment detection for WAV files and live audio",
		Long: `vadseg scores 32 ms audio frames with a speech predictor, turns the probabilities into
speech segments with hysteresis and padding, and filters them by length.

Key commands:
  detect <wav>...           Whole-file timestamps (duration filtered)
  stream <wav>              Frame-by-frame streaming path (unfiltered)
  split <wav> --out <dir>   Write segments (or the non-speech rest) as WAV
  listen                    Live microphone (build with -tags portaudio)
  gen-tone <out.wav>        Reference signal with tones at 1-2 s and 3-4 s
  mic list|set              Select microphone (alias: microphone, mics)
  doctor|config             Check environment / manage config file
  tail-log|test-hook        Log tail, manual hook

Env overrides: VADSEG_THRESHOLD, VADSEG_SAMPLE_RATE, VADSEG_PREDICTOR,
               VADSEG_METRICS_ADDR, VADSEG_LOG_LEVEL/FORMAT/STDOUT,
               VADSEG_HOOK_COMMAND`,
		Example: `  vadseg detect --json talk.wav
  vadseg detect -j 8 --min-speech-ms 500 *.wav
  vadseg stream --probs --flush talk.wav
  vadseg split talk.wav --out segments/
  vadseg listen --metrics-addr 127.0.0.1:9318 --hook`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
	}

	root.Version = version
	root.SetVersionTemplate("vadseg v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML, or YAML by extension). Defaults to ~/.config/vadseg/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewDetectCmd(cfgPath))
	root.AddCommand(control.NewStreamCmd(cfgPath))
	root.AddCommand(control.NewSplitCmd(cfgPath))
	root.AddCommand(control.NewListenCmd(cfgPath))
	root.AddCommand(control.NewGenToneCmd())
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewConfigCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))

	applyColorHelp(root)

	return root.Execute()
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%svadseg%s — speech segment detection %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sScores frames, closes segments after enough silence, pads and filters them.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  vadseg [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  detect <wav>...             whole-file timestamps [--json] [-j N]")
		writeln("  stream <wav>                streaming path [--probs] [--flush] [--hook]")
		writeln("  split <wav> --out <dir>     one WAV per segment [--drop|--collect]")
		writeln("  listen                      live mic [--metrics-addr] [--hook]")
		writeln("  gen-tone <out.wav>          reference test signal")
		writeln("  mic list|set                select input device")
		writeln("  doctor                      check config/predictor/hook/portaudio")
		writeln("  config show|init|path       manage the config file")
		writeln("  tail-log                    show last log lines")
		writeln("  test-hook <start> <end>     invoke hook manually")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --threshold <p>         speech probability threshold (default 0.5)")
		writeln("  --predictor <kind>      energy (default) or webrtc")
		writeln("  -c, --config <path>     config file (default ~/.config/vadseg/config.toml)")
		writeln("  Env: VADSEG_THRESHOLD=0.6, VADSEG_PREDICTOR=webrtc,")
		writeln("       VADSEG_METRICS_ADDR=host:port, VADSEG_LOG_LEVEL=debug")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  vadseg gen-tone ref.wav && vadseg detect ref.wav")
		writeln("  vadseg detect --json --max-speech-s 30 talk.wav")
		writeln("  vadseg split talk.wav --out segments/")
		writeln("  vadseg listen --metrics-addr 127.0.0.1:9318")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
