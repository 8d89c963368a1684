package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestConsole(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	return slog.New(newConsoleHandler(buf, levelVar, false))
}

func TestConsoleHandlerLineFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo)

	logger.Info("job started", FieldComponent, "worker", FieldJobID, "job-1", "attempt", 2)

	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		t.Fatalf("malformed line: %q", line)
	}
	if _, err := time.Parse(time.RFC3339, parts[0]); err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", parts[0], err)
	}
	if parts[1] != "INFO" {
		t.Fatalf("level = %q, want INFO", parts[1])
	}
	want := "worker: job started job_id=job-1 attempt=2"
	if parts[2] != want {
		t.Fatalf("rest = %q, want %q", parts[2], want)
	}
}

func TestConsoleHandlerHoistsComponentFromWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo).With(FieldComponent, "vram")

	logger.Warn("admission denied", "required_mb", 4096)

	line := buf.String()
	if !strings.Contains(line, "WARN vram: admission denied required_mb=4096") {
		t.Fatalf("unexpected line: %q", line)
	}
	// The component attr must not repeat as a key=value pair.
	if strings.Contains(line, "component=") {
		t.Fatalf("component leaked into attrs: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo)

	logger.Info("done", "path", "/tmp/out.mp4", "reason", "disk full", "label", "")

	line := buf.String()
	if !strings.Contains(line, "path=/tmp/out.mp4") {
		t.Fatalf("plain value quoted unexpectedly: %q", line)
	}
	if !strings.Contains(line, `reason="disk full"`) {
		t.Fatalf("spaced value not quoted: %q", line)
	}
	if !strings.Contains(line, `label=""`) {
		t.Fatalf("empty value not quoted: %q", line)
	}
}

func TestConsoleHandlerGroupsJoinWithDots(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo).WithGroup("stage")

	logger.Info("progress", "name", "encode_video", "fraction", 0.5)

	line := buf.String()
	if !strings.Contains(line, "stage.name=encode_video") {
		t.Fatalf("group prefix missing: %q", line)
	}
	if !strings.Contains(line, "stage.fraction=0.5") {
		t.Fatalf("group prefix missing on second attr: %q", line)
	}
}

func TestConsoleHandlerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelWarn)

	logger.Info("should be dropped")
	logger.Debug("should be dropped")
	logger.Error("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], "ERROR kept") {
		t.Fatalf("expected a single error line, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{" WARN ", slog.LevelWarn},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	if err == nil || !strings.Contains(err.Error(), "unsupported value") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mimic.log")
	logger, err := New(Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hello", FieldComponent, "test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "hello" {
		t.Fatalf("msg = %v, want hello", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v, want info", entry["level"])
	}
	ts, ok := entry["ts"].(string)
	if !ok {
		t.Fatalf("ts missing or not a string: %v", entry["ts"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("ts %q not RFC3339: %v", ts, err)
	}
}

func TestConsoleHandlerEnabled(t *testing.T) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	handler := newConsoleHandler(new(bytes.Buffer), levelVar, false)

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}
	if !handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be enabled at info level")
	}
}
