package dnslog

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" Warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestConfigureReturnsUsableLogger(t *testing.T) {
	logger := Configure("debug", false)
	if logger == nil {
		t.Fatal("Configure returned nil")
	}
	if !logger.Enabled(nil, slog.LevelDebug) {
		t.Error("logger configured at debug level does not report Debug enabled")
	}

	jsonLogger := Configure("error", true)
	if jsonLogger.Enabled(nil, slog.LevelWarn) {
		t.Error("logger configured at error level reports Warn enabled")
	}
}
