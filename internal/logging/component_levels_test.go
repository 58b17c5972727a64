package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newVerboseBase(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestWithComponentLevelsRaisesOneComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponentLevels(newVerboseBase(&buf), map[string]string{"queue": "debug"}, "info")

	NewComponentLogger(logger, "queue").Debug("queue detail")
	NewComponentLogger(logger, "encoding").Debug("encoding detail")
	NewComponentLogger(logger, "encoding").Info("encoding event")

	out := buf.String()
	if !strings.Contains(out, "queue detail") {
		t.Error("queue debug line should pass its override")
	}
	if strings.Contains(out, "encoding detail") {
		t.Error("encoding debug line should be clamped to the global level")
	}
	if !strings.Contains(out, "encoding event") {
		t.Error("encoding info line should pass the global level")
	}
}

func TestWithComponentLevelsQuietsOneComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponentLevels(newVerboseBase(&buf), map[string]string{"watch": "error"}, "info")

	NewComponentLogger(logger, "watch").Warn("watch warning")
	NewComponentLogger(logger, "watch").Error("watch failure")

	out := buf.String()
	if strings.Contains(out, "watch warning") {
		t.Error("watch warnings should be suppressed by the override")
	}
	if !strings.Contains(out, "watch failure") {
		t.Error("watch errors should still be emitted")
	}
}

func TestWithComponentLevelsNoOverridesReturnsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newVerboseBase(&buf)
	if got := WithComponentLevels(base, nil, "info"); got != base {
		t.Error("expected the base logger back when no overrides are configured")
	}
}

func TestMostVerboseLevel(t *testing.T) {
	cases := []struct {
		global    string
		overrides map[string]string
		want      slog.Level
	}{
		{"info", nil, slog.LevelInfo},
		{"info", map[string]string{"queue": "debug"}, slog.LevelDebug},
		{"warn", map[string]string{"queue": "error"}, slog.LevelWarn},
		{"error", map[string]string{"a": "warn", "b": "debug"}, slog.LevelDebug},
	}
	for _, tc := range cases {
		if got := MostVerboseLevel(tc.global, tc.overrides); got != tc.want {
			t.Errorf("MostVerboseLevel(%q, %v) = %v, want %v", tc.global, tc.overrides, got, tc.want)
		}
	}
}

func TestLevelName(t *testing.T) {
	if LevelName(slog.LevelDebug) != "debug" || LevelName(slog.LevelInfo) != "info" ||
		LevelName(slog.LevelWarn) != "warn" || LevelName(slog.LevelError) != "error" {
		t.Error("level names should round-trip the configuration vocabulary")
	}
}
