package control

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vadseg/internal/audio"
	"vadseg/internal/config"
	"vadseg/internal/detect"
	"vadseg/internal/logging"
	"vadseg/internal/predict"
)

// vadFlags are the detection overrides shared by the file commands. Only
// flags the user set replace config values.
type vadFlags struct {
	threshold    float64
	minSilenceMS uint
	speechPadMS  uint
	minSpeechMS  uint
	maxSpeechS   float64
	batchSize    int
	predictor    string
	resample     bool
	verbose      bool
}

func addVADFlags(cmd *cobra.Command, f *vadFlags) {
	fs := cmd.Flags()
	fs.Float64Var(&f.threshold, "threshold", 0.5, "speech probability threshold")
	fs.UintVar(&f.minSilenceMS, "min-silence-ms", 100, "silence needed to close a segment")
	fs.UintVar(&f.speechPadMS, "speech-pad-ms", 30, "padding added to segment ends")
	fs.UintVar(&f.minSpeechMS, "min-speech-ms", 250, "drop shorter segments (whole-file only)")
	fs.Float64Var(&f.maxSpeechS, "max-speech-s", 0, "drop longer segments, 0 = unbounded (whole-file only)")
	fs.IntVar(&f.batchSize, "batch-size", 1, "frames per predictor call")
	fs.StringVar(&f.predictor, "predictor", predict.KindEnergy, "predictor kind: energy or webrtc")
	fs.BoolVar(&f.resample, "resample", false, "resample input to audio.sample_rate instead of rejecting other rates")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging to stderr")
}

func (f *vadFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("threshold") {
		cfg.VAD.Threshold = f.threshold
	}
	if fs.Changed("min-silence-ms") {
		cfg.VAD.MinSilenceMS = f.minSilenceMS
	}
	if fs.Changed("speech-pad-ms") {
		cfg.VAD.SpeechPadMS = f.speechPadMS
	}
	if fs.Changed("min-speech-ms") {
		cfg.VAD.MinSpeechMS = f.minSpeechMS
	}
	if fs.Changed("max-speech-s") {
		cfg.VAD.MaxSpeechS = f.maxSpeechS
	}
	if fs.Changed("batch-size") {
		cfg.VAD.BatchSize = f.batchSize
	}
	if fs.Changed("predictor") {
		cfg.Predictor.Kind = f.predictor
	}
}

// loadForRun loads the config, applies flag overrides and validates.
func loadForRun(cmd *cobra.Command, cfgPath string, f *vadFlags) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logging.Console(cfg, f.verbose), nil
}

// readInput loads a WAV file, resampling to the configured rate on request.
func readInput(path string, cfg *config.Config, resample bool) ([]float32, int, error) {
	if resample {
		samples, err := audio.ReadWAVAt(path, cfg.Audio.SampleRate)
		return samples, cfg.Audio.SampleRate, err
	}
	return audio.ReadWAV(path)
}

// newDetector builds a detector for audio at rate, which may differ from the
// configured rate.
func newDetector(cfg *config.Config, rate int, logger logrus.FieldLogger) (*detect.Detector, error) {
	dcfg := cfg.Detection()
	dcfg.SampleRate = rate
	popts := cfg.PredictorOptions()
	popts.SampleRate = rate
	p, err := predict.New(popts)
	if err != nil {
		return nil, err
	}
	d, err := detect.New(dcfg, p, logger)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return d, nil
}
