package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vadseg/internal/vaderr"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}

	t.Setenv("VADSEG_THRESHOLD", "0.7")
	t.Setenv("VADSEG_SAMPLE_RATE", "8000")
	t.Setenv("VADSEG_PREDICTOR", "webrtc")
	t.Setenv("VADSEG_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("VADSEG_LOG_LEVEL", "debug")
	t.Setenv("VADSEG_LOG_FORMAT", "json")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("overrides: %v", err)
	}

	if cfg.VAD.Threshold != 0.7 || cfg.Audio.SampleRate != 8000 || cfg.Predictor.Kind != "webrtc" {
		t.Fatalf("vad overrides failed: %+v %+v", cfg.VAD, cfg.Audio)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
}

func TestEnvOverridesRejectGarbage(t *testing.T) {
	cfg, _ := Default()
	t.Setenv("VADSEG_THRESHOLD", "loud")
	t.Setenv("VADSEG_SAMPLE_RATE", "fast")
	err := applyEnvOverrides(cfg)
	if !errors.Is(err, vaderr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !strings.Contains(err.Error(), "VADSEG_THRESHOLD") || !strings.Contains(err.Error(), "VADSEG_SAMPLE_RATE") {
		t.Fatalf("expected both variables reported: %v", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml"} {
		path := filepath.Join(t.TempDir(), name)

		cfg, err := Default()
		if err != nil {
			t.Fatalf("default: %v", err)
		}
		cfg.Hook.Command = "/bin/echo"
		cfg.VAD.MinSilenceMS = 250
		cfg.Predictor.Kind = "webrtc"

		if err := Save(cfg, path); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if loaded.Hook.Command != "/bin/echo" || loaded.VAD.MinSilenceMS != 250 || loaded.Predictor.Kind != "webrtc" {
			t.Fatalf("%s: values did not persist: %+v", name, loaded)
		}
		if loaded.Paths.ConfigPath != path {
			t.Fatalf("%s: config path not recorded", name)
		}
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template not written: %v", err)
	}
	if !strings.Contains(string(data), "min_silence_ms: 100") {
		t.Fatalf("expected yaml template, got:\n%s", data)
	}
	if cfg.VAD.Threshold != 0.5 {
		t.Fatalf("unexpected threshold %v", cfg.VAD.Threshold)
	}
}

func TestLoadReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[vad\nthreshold = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg, _ := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Audio.SampleRate = 44100
	cfg.VAD.Threshold = 1.5
	cfg.VAD.BatchSize = 0
	cfg.Predictor.Kind = "silero"
	err := cfg.Validate()
	if !errors.Is(err, vaderr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	for _, want := range []string{"sample_rate", "threshold", "batch_size", "predictor.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}

	cfg, _ = Default()
	cfg.VAD.MinSpeechMS = 2000
	cfg.VAD.MaxSpeechS = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("min above max should fail")
	}
	cfg.VAD.MaxSpeechS = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("negative max should fail")
	}
}

func TestValidateMaxSpeechRange(t *testing.T) {
	for _, v := range []float64{1e-10, 1e12} {
		cfg, _ := Default()
		cfg.VAD.MaxSpeechS = v
		err := cfg.Validate()
		if !errors.Is(err, vaderr.ErrInvalidInput) {
			t.Fatalf("max_speech_s %v: expected invalid input, got %v", v, err)
		}
		if !strings.Contains(err.Error(), "use 0 for unbounded") || strings.Contains(err.Error(), "min_speech_ms") {
			t.Fatalf("max_speech_s %v: unclear message %v", v, err)
		}
	}

	cfg, _ := Default()
	cfg.VAD.MaxSpeechS = 1e9
	if err := cfg.Validate(); err != nil {
		t.Fatalf("large but representable max should pass: %v", err)
	}
	if d := cfg.Detection().MaxSpeech; d <= 0 {
		t.Fatalf("max speech overflowed: %v", d)
	}
}

func TestDetectionConversion(t *testing.T) {
	cfg, _ := Default()
	cfg.VAD.MaxSpeechS = 1.5
	d := cfg.Detection()
	if d.MinSilence != 100*time.Millisecond || d.SpeechPad != 30*time.Millisecond || d.MinSpeech != 250*time.Millisecond {
		t.Fatalf("durations not converted: %+v", d)
	}
	if d.MaxSpeech != 1500*time.Millisecond {
		t.Fatalf("max speech: %v", d.MaxSpeech)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("converted config invalid: %v", err)
	}

	cfg.VAD.MaxSpeechS = 0
	if cfg.Detection().MaxSpeech != 0 {
		t.Fatalf("zero max speech should stay unbounded")
	}

	cfg.Predictor.Kind = "WebRTC"
	if opts := cfg.PredictorOptions(); opts.Kind != "webrtc" || opts.SampleRate != 16000 {
		t.Fatalf("predictor options: %+v", opts)
	}
}
