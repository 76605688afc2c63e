package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"vadseg/internal/config"
	"vadseg/internal/segment"
)

// Job represents a hook invocation request for one detected segment.
type Job struct {
	Segment   segment.Segment
	Source    string
	Timestamp time.Time
}

// Runner executes the segment hook with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   logrus.FieldLogger
	args     []string
	lastRun  time.Time
	mu       sync.Mutex
	hostname string
}

// NewRunner resolves the configured arguments. hook.arg_line, when set, is
// split shell-style.
func NewRunner(cfg *config.Config, logger logrus.FieldLogger) (*Runner, error) {
	args := append([]string{}, cfg.Hook.Args...)
	if strings.TrimSpace(cfg.Hook.ArgLine) != "" {
		parsed, err := ParseArgs(cfg.Hook.ArgLine)
		if err != nil {
			return nil, fmt.Errorf("hook.arg_line: %w", err)
		}
		args = parsed
	}
	host, _ := os.Hostname()
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		args:     args,
		hostname: host,
	}, nil
}

// Enabled reports whether a hook command is configured.
func (r *Runner) Enabled() bool { return r.cfg.Hook.Command != "" }

// Accepts reports whether seg is long enough to be worth a hook run.
func (r *Runner) Accepts(seg segment.Segment) bool {
	return seg.Duration() >= time.Duration(r.cfg.Hook.MinSpeechMS)*time.Millisecond
}

// ShouldRun returns whether cooldown allows a new hook.
func (r *Runner) ShouldRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.Hook.CooldownSec <= 0 {
		return true
	}
	return time.Since(r.lastRun).Seconds() >= r.cfg.Hook.CooldownSec
}

// Run executes the configured command. The segment bounds are appended as
// the last argument and exported as VADSEG_* variables.
func (r *Runner) Run(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.lastRun = time.Now()
	r.mu.Unlock()

	cmdStr := r.cfg.Hook.Command
	if cmdStr == "" {
		return fmt.Errorf("no hook.command configured")
	}
	args := append([]string{}, r.args...)

	prefix := strings.ReplaceAll(r.cfg.Hook.Prefix, "${hostname}", r.hostname)
	seg := job.Segment
	payload := strings.TrimSpace(fmt.Sprintf("%s%.3f %.3f", prefix, seg.StartSeconds(), seg.EndSeconds()))
	args = append(args, payload)

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Hook.TimeoutSec > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*r.cfg.Hook.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, cmdStr, args...)
	cmd.Env = os.Environ()
	for k, v := range r.cfg.Hook.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("VADSEG_START=%.3f", seg.StartSeconds()),
		fmt.Sprintf("VADSEG_END=%.3f", seg.EndSeconds()),
		fmt.Sprintf("VADSEG_DURATION=%.3f", seg.Duration().Seconds()),
		fmt.Sprintf("VADSEG_SOURCE=%s", job.Source),
		fmt.Sprintf("VADSEG_PREFIX=%s", prefix),
	)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs allows hook args to be configured as a single string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}
