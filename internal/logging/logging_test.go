package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger_Formats(t *testing.T) {
	var text bytes.Buffer
	NewLogger(slog.LevelInfo, FormatText, &text).Info("tick", "frame", 3)
	require.Contains(t, text.String(), "msg=tick")
	require.Contains(t, text.String(), "frame=3")

	var js bytes.Buffer
	NewLogger(slog.LevelInfo, FormatJSON, &js).Info("tick", "frame", 3)
	require.Contains(t, js.String(), `"msg":"tick"`)
	require.Contains(t, js.String(), `"frame":3`)
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.LevelWarn, FormatText, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "Text": FormatText, " JSON ": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, "ParseFormat(%q)", in)
		require.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	require.ErrorContains(t, err, "unknown log format")
}

func TestFromConfig(t *testing.T) {
	logger, err := FromConfig("debug", "json")
	require.NoError(t, err)
	require.True(t, logger.Enabled(t.Context(), slog.LevelDebug))

	_, err = FromConfig("info", "xml")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}
