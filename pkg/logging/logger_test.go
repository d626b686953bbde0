package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("default level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("default output should be JSON")
	}
	if cfg.Service == "" {
		t.Error("default service name should be set")
	}
}

func TestSetup_WritesServiceField(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Service: "coin-proxy", Output: buf})

	logger.Info().Msg("proxy started")

	out := buf.String()
	if !strings.Contains(out, `"service":"coin-proxy"`) {
		t.Errorf("output %q missing service field", out)
	}
	if !strings.Contains(out, "proxy started") {
		t.Errorf("output %q missing message", out)
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("kind", "news").Msg("cache warm")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
	if !strings.Contains(out, "cache warm") {
		t.Errorf("output %q missing message", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLevelToZerolog(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("response-cache")
	logger.Info().Msg("cache cleared")

	out := buf.String()
	if !strings.Contains(out, `"component":"response-cache"`) {
		t.Errorf("output %q missing component", out)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	out := buf.String()
	for _, hidden := range []string{"debug message", "info message"} {
		if strings.Contains(out, hidden) {
			t.Errorf("%q should be filtered at warn level", hidden)
		}
	}
	for _, shown := range []string{"warn message", "error message"} {
		if !strings.Contains(out, shown) {
			t.Errorf("%q should be logged at warn level", shown)
		}
	}
}
