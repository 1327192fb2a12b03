package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fileconv/internal/config"
	"fileconv/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (func() string, *logging.Options) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "fileconv.log")
	opts := &logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
	}
	read := func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return read, opts
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Debug("debug message")
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.File = filepath.Join(t.TempDir(), "logs", "fileconv.log")
	cfg.Logging.Format = "json"
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}

	logger.Info("to file", logging.Bool("ok", true))

	content, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"to file"`) || !strings.Contains(string(content), `"ok":true`) {
		t.Fatalf("unexpected log file content %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	read, opts := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := read(); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	read, opts := newFileLogger(t, "console", "debug")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if content := read(); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	read, opts := newFileLogger(t, "console", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	jobsLogger := logging.NewComponentLogger(logger, "jobs")
	ctx := logging.WithJobID(context.Background(), "0123456789abcdef")
	logging.WithContext(ctx, jobsLogger).Info("poll complete",
		logging.String(logging.FieldStatus, "processing"),
		logging.String("note", "two words"),
		logging.Error(errors.New("boom")),
	)

	content := read()
	for _, want := range []string{
		"INFO jobs [job 01234567]: poll complete",
		"status=processing",
		`note="two words"`,
		"error=boom",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, "component=") || strings.Contains(content, "job_id=") {
		t.Fatalf("expected subject fields to be folded into the prefix, got %q", content)
	}
}

func TestJSONLoggerUsesCanonicalKeys(t *testing.T) {
	read, opts := newFileLogger(t, "json", "info")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "session").Warn("json message", logging.String("k", "v"))

	line := strings.TrimSpace(read())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["msg"] != "json message" || payload["k"] != "v" || payload["component"] != "session" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestLevelFiltering(t *testing.T) {
	read, opts := newFileLogger(t, "console", "warn")
	logger, err := logging.New(*opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Error("shown")

	content := read()
	if strings.Contains(content, "hidden") || !strings.Contains(content, "shown") {
		t.Fatalf("unexpected level filtering result: %q", content)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("expected no-op logger to be disabled")
	}
	logging.NewComponentLogger(nil, "x").Info("ignored")
}

func TestContextFieldsWithoutJob(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	if _, ok := logging.JobIDFromContext(logging.WithJobID(context.Background(), "  ")); ok {
		t.Fatal("expected blank job id to be ignored")
	}
}
