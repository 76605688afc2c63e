package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"vadseg/internal/detect"
	"vadseg/internal/predict"
	"vadseg/internal/vaderr"
)

const (
	defaultThreshold     = 0.5
	defaultMinSilenceMS  = 100
	defaultSpeechPadMS   = 30
	defaultMinSpeechMS   = 250
	defaultCooldown      = 1.0
	defaultStateDirLinux = ".local/state/vadseg"
	defaultConfigDir     = ".config/vadseg"

	// maxSpeechLimitS is the longest max_speech_s a time.Duration can hold.
	maxSpeechLimitS = math.MaxInt64 / int64(time.Second)
)

// Config holds user configuration loaded from TOML or YAML.
type Config struct {
	Audio struct {
		SampleRate  int    `toml:"sample_rate" yaml:"sample_rate"`
		DeviceName  string `toml:"device_name" yaml:"device_name"`
		DeviceIndex int    `toml:"device_index" yaml:"device_index"`
	} `toml:"audio" yaml:"audio"`

	VAD struct {
		Threshold    float64 `toml:"threshold" yaml:"threshold"`
		MinSilenceMS uint    `toml:"min_silence_ms" yaml:"min_silence_ms"`
		SpeechPadMS  uint    `toml:"speech_pad_ms" yaml:"speech_pad_ms"`
		MinSpeechMS  uint    `toml:"min_speech_ms" yaml:"min_speech_ms"`
		MaxSpeechS   float64 `toml:"max_speech_s" yaml:"max_speech_s"` // 0 = unbounded
		BatchSize    int     `toml:"batch_size" yaml:"batch_size"`
	} `toml:"vad" yaml:"vad"`

	Predictor struct {
		Kind           string  `toml:"kind" yaml:"kind"` // energy, webrtc
		ReferenceRMS   float64 `toml:"reference_rms" yaml:"reference_rms"`
		Aggressiveness int     `toml:"aggressiveness" yaml:"aggressiveness"` // webrtc 0-3
	} `toml:"predictor" yaml:"predictor"`

	Hook struct {
		Command     string            `toml:"command" yaml:"command"`
		Args        []string          `toml:"args" yaml:"args"`
		ArgLine     string            `toml:"arg_line" yaml:"arg_line"` // shell-style alternative to args
		Prefix      string            `toml:"prefix" yaml:"prefix"`
		CooldownSec float64           `toml:"cooldown_sec" yaml:"cooldown_sec"`
		MinSpeechMS uint              `toml:"min_speech_ms" yaml:"min_speech_ms"`
		QueueSize   int               `toml:"queue_size" yaml:"queue_size"`
		TimeoutSec  float64           `toml:"timeout_sec" yaml:"timeout_sec"`
		Env         map[string]string `toml:"env" yaml:"env"`
	} `toml:"hook" yaml:"hook"`

	Logging struct {
		Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
		Format string `toml:"format" yaml:"format"` // text, json
		Stdout bool   `toml:"stdout" yaml:"stdout"`
	} `toml:"logging" yaml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir" yaml:"state_dir"`
		LogPath    string `toml:"log_path" yaml:"log_path"`
		ConfigPath string `toml:"-" yaml:"-"`
	} `toml:"paths" yaml:"paths"`

	Metrics struct {
		Enabled bool   `toml:"enabled" yaml:"enabled"`
		Addr    string `toml:"addr" yaml:"addr"`
	} `toml:"metrics" yaml:"metrics"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "vadseg")
	}

	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.DeviceIndex = -1

	cfg.VAD.Threshold = defaultThreshold
	cfg.VAD.MinSilenceMS = defaultMinSilenceMS
	cfg.VAD.SpeechPadMS = defaultSpeechPadMS
	cfg.VAD.MinSpeechMS = defaultMinSpeechMS
	cfg.VAD.MaxSpeechS = 0
	cfg.VAD.BatchSize = 1

	cfg.Predictor.Kind = predict.KindEnergy
	cfg.Predictor.ReferenceRMS = predict.DefaultReferenceRMS
	cfg.Predictor.Aggressiveness = 2

	cfg.Hook.Args = []string{}
	cfg.Hook.CooldownSec = defaultCooldown
	cfg.Hook.MinSpeechMS = defaultMinSpeechMS
	cfg.Hook.QueueSize = 16
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "vadseg.log")

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	return cfg, nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultConfigDir, "config.toml")
}

// Load loads config from file, applying defaults, then environment
// overrides. A missing file is created from the defaults. Files ending in
// .yaml or .yml are YAML, anything else TOML.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.Paths.ConfigPath = path
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in the format its extension names.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := Marshal(cfg, path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// Marshal encodes cfg as YAML or TOML depending on path.
func Marshal(cfg *Config, path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return toml.Marshal(cfg)
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return toml.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	var result *multierror.Error
	if v := os.Getenv("VADSEG_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("VADSEG_THRESHOLD: %w", err))
		} else {
			cfg.VAD.Threshold = f
		}
	}
	if v := os.Getenv("VADSEG_SAMPLE_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("VADSEG_SAMPLE_RATE: %w", err))
		} else {
			cfg.Audio.SampleRate = n
		}
	}
	if v := os.Getenv("VADSEG_PREDICTOR"); v != "" {
		cfg.Predictor.Kind = v
	}
	if v := os.Getenv("VADSEG_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("VADSEG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VADSEG_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VADSEG_LOG_STDOUT"); v != "" {
		cfg.Logging.Stdout = v != "0" && strings.ToLower(v) != "false"
	}
	if v := os.Getenv("VADSEG_HOOK_COMMAND"); v != "" {
		cfg.Hook.Command = v
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", vaderr.ErrInvalidInput, err)
	}
	return nil
}

// Validate reports every problem in cfg at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	switch c.Audio.SampleRate {
	case 8000, 16000:
	default:
		add("audio.sample_rate must be 8000 or 16000 (got %d)", c.Audio.SampleRate)
	}
	if math.IsNaN(c.VAD.Threshold) || c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
		add("vad.threshold must be within [0,1] (got %v)", c.VAD.Threshold)
	}
	switch v := c.VAD.MaxSpeechS; {
	case math.IsNaN(v) || v < 0:
		add("vad.max_speech_s must not be negative (got %v)", v)
	case v == 0 || math.IsInf(v, 1):
	case v*float64(time.Second) < 1:
		add("vad.max_speech_s %v is shorter than 1ns; use 0 for unbounded", v)
	case v > float64(maxSpeechLimitS):
		add("vad.max_speech_s %v exceeds %d; use 0 for unbounded", v, maxSpeechLimitS)
	case time.Duration(c.VAD.MinSpeechMS)*time.Millisecond > c.maxSpeech():
		add("vad.min_speech_ms %d exceeds vad.max_speech_s %v", c.VAD.MinSpeechMS, v)
	}
	if c.VAD.BatchSize < 1 {
		add("vad.batch_size must be at least 1 (got %d)", c.VAD.BatchSize)
	}
	switch strings.ToLower(c.Predictor.Kind) {
	case predict.KindEnergy, "":
		if math.IsNaN(c.Predictor.ReferenceRMS) || math.IsInf(c.Predictor.ReferenceRMS, 0) {
			add("predictor.reference_rms must be finite")
		}
	case predict.KindWebRTC:
		if c.Predictor.Aggressiveness < 0 || c.Predictor.Aggressiveness > 3 {
			add("predictor.aggressiveness must be within 0-3 (got %d)", c.Predictor.Aggressiveness)
		}
	default:
		add("predictor.kind %q is unknown (want %s or %s)", c.Predictor.Kind, predict.KindEnergy, predict.KindWebRTC)
	}
	if c.Hook.CooldownSec < 0 || c.Hook.TimeoutSec < 0 {
		add("hook.cooldown_sec and hook.timeout_sec must not be negative")
	}
	if c.Hook.QueueSize < 1 {
		add("hook.queue_size must be at least 1 (got %d)", c.Hook.QueueSize)
	}
	if len(c.Hook.Args) > 0 && strings.TrimSpace(c.Hook.ArgLine) != "" {
		add("hook.args and hook.arg_line are mutually exclusive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		add("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", vaderr.ErrInvalidInput, err)
	}
	return nil
}

func (c *Config) maxSpeech() time.Duration {
	if math.IsInf(c.VAD.MaxSpeechS, 1) || c.VAD.MaxSpeechS <= 0 {
		return 0
	}
	return time.Duration(c.VAD.MaxSpeechS * float64(time.Second))
}

// Detection converts the vad and audio sections into detector settings.
func (c *Config) Detection() detect.Config {
	return detect.Config{
		Threshold:  c.VAD.Threshold,
		SampleRate: c.Audio.SampleRate,
		MinSilence: time.Duration(c.VAD.MinSilenceMS) * time.Millisecond,
		SpeechPad:  time.Duration(c.VAD.SpeechPadMS) * time.Millisecond,
		MinSpeech:  time.Duration(c.VAD.MinSpeechMS) * time.Millisecond,
		MaxSpeech:  c.maxSpeech(),
		BatchSize:  c.VAD.BatchSize,
	}
}

// PredictorOptions converts the predictor section into construction options.
func (c *Config) PredictorOptions() predict.Options {
	return predict.Options{
		Kind:           strings.ToLower(c.Predictor.Kind),
		SampleRate:     c.Audio.SampleRate,
		ReferenceRMS:   c.Predictor.ReferenceRMS,
		Aggressiveness: c.Predictor.Aggressiveness,
	}
}
