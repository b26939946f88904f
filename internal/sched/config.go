package sched

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
)

// PanicPolicy decides what happens when a task body panics.
type PanicPolicy int

const (
	// PanicIsolate records the panic as the task's error and drops the task.
	PanicIsolate PanicPolicy = iota
	// PanicFatal lets the panic escape Update.
	PanicFatal
)

func (p PanicPolicy) String() string {
	if p == PanicFatal {
		return "fatal"
	}
	return "isolate"
}

// ParsePanicPolicy maps "isolate" or "fatal" to a PanicPolicy.
func ParsePanicPolicy(s string) (PanicPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return PanicIsolate, nil
	case "fatal":
		return PanicFatal, nil
	default:
		return PanicIsolate, fmt.Errorf("unknown panic policy %q", s)
	}
}

// Config mirrors config.yml. PanicPolicy is filled in by Load; a Config built
// by hand may set either it or Panic.
type Config struct {
	TickMS       int    `yaml:"tick_ms"`        // 16 (by default)
	MaxTicks     int64  `yaml:"max_ticks"`      // 0 = unbounded
	StopWhenIdle bool   `yaml:"stop_when_idle"` // true (by default)
	Panic        string `yaml:"panic_policy"`   // isolate | fatal
	LogLevel     string `yaml:"log_level"`      // info (by default)
	LogFormat    string `yaml:"log_format"`     // text | json
	TraceCSV     string `yaml:"trace_csv"`      // empty = no trace

	PanicPolicy PanicPolicy `yaml:"-"`
}

// DefaultConfig is used when no config file is given or found.
func DefaultConfig() Config {
	return Config{
		TickMS:       16,
		StopWhenIdle: true,
		Panic:        "isolate",
		LogLevel:     "info",
		LogFormat:    "text",
		PanicPolicy:  PanicIsolate,
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only. Malformed YAML or an unknown panic policy is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 16
	}
	if cfg.MaxTicks < 0 {
		cfg.MaxTicks = 0
	}
	policy, err := ParsePanicPolicy(cfg.Panic)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.PanicPolicy = policy

	return cfg, nil
}

// policy resolves the panic policy New should use. An explicit PanicFatal
// wins; otherwise Panic is parsed, and an unknown name is logged and treated
// as isolate.
func (c Config) policy(logger *slog.Logger) PanicPolicy {
	if c.PanicPolicy == PanicFatal {
		return PanicFatal
	}
	p, err := ParsePanicPolicy(c.Panic)
	if err != nil {
		logger.Warn("ignoring panic_policy", "error", err)
		return PanicIsolate
	}
	return p
}
