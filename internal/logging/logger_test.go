package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromContext_RunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithRunID(context.Background(), "run-42")
	if got := RunID(ctx); got != "run-42" {
		t.Errorf("RunID() = %q, want run-42", got)
	}

	WithFields(ctx, "component", "test").Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-42"`) {
		t.Errorf("log line missing run_id: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) {
		t.Errorf("log line missing component: %s", out)
	}
}

func TestFromContext_NoRunID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	FromContext(context.Background()).Info("hello")

	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("log line has run_id without one in context: %s", buf.String())
	}
}

func TestRunID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"absent", context.Background(), ""},
		{"set", WithRunID(context.Background(), "run-1"), "run-1"},
		{"innermost wins", WithRunID(WithRunID(context.Background(), "run-1"), "run-2"), "run-2"},
		{"unrelated value", context.WithValue(context.Background(), struct{ name string }{"run_id"}, "run-3"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RunID(tt.ctx); got != tt.want {
				t.Errorf("RunID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")
	logger.Info("quiet")
	logger.Warn("loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Errorf("info line written at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "loud") {
		t.Errorf("warn line missing: %s", buf.String())
	}
}
