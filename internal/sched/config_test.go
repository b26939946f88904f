package sched

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
tick_ms: 33
max_ticks: 120
stop_when_idle: false
panic_policy: fatal
log_level: debug
log_format: json
trace_csv: out.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 33, cfg.TickMS)
	require.Equal(t, int64(120), cfg.MaxTicks)
	require.False(t, cfg.StopWhenIdle)
	require.Equal(t, PanicFatal, cfg.PanicPolicy)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "out.csv", cfg.TraceCSV)
}

func TestLoadClamps(t *testing.T) {
	cfg, err := Load(writeConfig(t, "tick_ms: -4\nmax_ticks: -1\n"))
	require.NoError(t, err)
	require.Equal(t, 16, cfg.TickMS)
	require.Zero(t, cfg.MaxTicks)
	require.True(t, cfg.StopWhenIdle, "unset keys keep their defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "panic_policy: explode\n"))
	require.ErrorContains(t, err, "unknown panic policy")

	_, err = Load(writeConfig(t, "tick_ms: [1, 2\n"))
	require.Error(t, err)
}

func TestParsePanicPolicy(t *testing.T) {
	p, err := ParsePanicPolicy("")
	require.NoError(t, err)
	require.Equal(t, PanicIsolate, p)

	p, err = ParsePanicPolicy(" FATAL ")
	require.NoError(t, err)
	require.Equal(t, PanicFatal, p)
	require.Equal(t, "fatal", p.String())
	require.Equal(t, "isolate", PanicIsolate.String())
}
