// Package logging tests
package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	logger := New()
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.Logger == nil {
		t.Fatal("logger.Logger is nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewWithConfig_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"text format", "text"},
		{"json format", "json"},
		{"unknown format defaults to text", "unknown"},
		{"empty format defaults to text", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewWithConfig("info", tt.format, "")
			if err != nil {
				t.Fatalf("NewWithConfig() error: %v", err)
			}
			if err := logger.Close(); err != nil {
				t.Errorf("Close() without a file should be a no-op, got %v", err)
			}
		})
	}
}

func TestNewWithConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")

	logger, err := NewWithConfig("info", "text", path)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	logger.Info("written to file", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("expected log line in file, got %q", data)
	}
}

func TestNewWithConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewWithConfig("info", "text", filepath.Join(blocker, "bot.log")); err == nil {
		t.Error("expected an error when the log directory cannot be created")
	}
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "debug", "json")

	logger.Component("gateway").Debug("dispatch", "kind", "text")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON log line: %v (%q)", err, buf.String())
	}
	if rec["component"] != "gateway" {
		t.Errorf("expected component=gateway, got %v", rec["component"])
	}
	if rec["msg"] != "dispatch" {
		t.Errorf("expected msg=dispatch, got %v", rec["msg"])
	}
}

func TestNewWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line should be written")
	}
}

func TestLogger_LogMethods(t *testing.T) {
	// These should not panic
	logger := New()
	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	Discard().Error("dropped")
}
