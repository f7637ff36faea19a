package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentWorker)
	logger.Info("sweep done", FieldCount, 3)

	out := buf.String()
	if !strings.Contains(out, "component=worker") || !strings.Contains(out, "count=3") {
		t.Errorf("unexpected output: %s", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentAMQP).Warn("reconnecting")
	out = buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=amqp") {
		t.Errorf("component should appear once: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != ComponentApp {
		t.Errorf("fallback component = %q", got.Component())
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP).With(FieldRequestID, "req_1")
	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).InfoContext(ctx, "hello")
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("context logger not used: %s", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))
	ctx := context.Background()

	sl.LogImport(ctx, "imp-1", "march.csv", 10, 2, 1)
	sl.LogCategorization(ctx, 12, 9, 1, 2, true)
	sl.LogError(ctx, "Rollup export failed", errors.New("quota"), ComponentSheets, OpExport, nil)

	out := buf.String()
	for _, want := range []string{
		"component=import", "import_id=imp-1", "filename=march.csv", "inserted=10", "duplicates=2",
		"component=categorize", "categorized=9", "dry_run=true",
		"level=ERROR", "component=sheets", "operation=export", "error=quota",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
