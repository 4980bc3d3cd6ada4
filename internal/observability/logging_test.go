package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/repairx/job-service/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestEncodingFallsBackToJSON(t *testing.T) {
	if got := encoding("Console"); got != "console" {
		t.Errorf("encoding(Console) = %q", got)
	}
	if got := encoding("xml"); got != "json" {
		t.Errorf("encoding(xml) = %q, want json", got)
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger, err := NewLogger(
		config.LoggerConfig{Level: "warn", Encoding: "json"},
		config.AppConfig{Name: "repairx-job-service", Env: "test", Version: "dev"},
	)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}
}
