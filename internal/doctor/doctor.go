package doctor

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vadseg/internal/config"
	"vadseg/internal/predict"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkConfig(cfg),
		checkPredictor(cfg),
		checkStateDir(cfg.Paths.StateDir),
		checkHookExecutable(cfg.Hook.Command),
	}
	if cfg.Metrics.Enabled {
		results = append(results, checkMetricsAddr(cfg.Metrics.Addr))
	}
	results = append(results, checkPortAudioPkgConfig(), checkPortAudio())
	return results
}

// Failed counts results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func checkConfig(cfg *config.Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Name: "config", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "config", Pass: true, Detail: "valid"}
}

func checkPredictor(cfg *config.Config) Result {
	opts := cfg.PredictorOptions()
	label := "predictor"
	p, err := predict.New(opts)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	if err := p.Close(); err != nil {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("close: %v", err)}
	}
	kind := opts.Kind
	if kind == "" {
		kind = predict.KindEnergy
	}
	return Result{Name: label, Pass: true, Detail: fmt.Sprintf("%s @ %d Hz", kind, opts.SampleRate)}
}

func checkStateDir(dir string) Result {
	label := "state dir"
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: fmt.Sprintf("not writable: %v", err)}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return Result{Name: label, Pass: true, Detail: filepath.Clean(dir)}
}

func checkMetricsAddr(addr string) Result {
	label := "metrics.addr"
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: addr}
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if cmd == "" {
		return Result{Name: label, Pass: true, Detail: "not set (hooks disabled)"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	// Optional display version
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}
