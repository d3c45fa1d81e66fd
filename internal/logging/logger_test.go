package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"driftpursuit/intercept/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			t.Fatalf("decode log line %q: %v", raw, err)
		}
		lines = append(lines, payload)
	}
	return lines
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, InfoLevel)

	//1.- Debug output must be suppressed while info and above pass through.
	logger.Debug("hidden")
	logger.Info("engagement resolved", Int("events", 12), Float64("side_a", 0.5), Error(errors.New("boom")))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(lines))
	}
	line := lines[0]
	if line["message"] != "engagement resolved" || line["level"] != "info" {
		t.Fatalf("unexpected payload %#v", line)
	}
	if line["events"] != float64(12) || line["side_a"] != 0.5 || line["error"] != "boom" {
		t.Fatalf("fields not encoded: %#v", line)
	}
	if line["service"] != "intercept" {
		t.Fatalf("expected service field, got %#v", line["service"])
	}
}

func TestWithCopiesFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, DebugLevel)
	derived := base.With(String("campaign", "c-1"))

	derived.Debug("derived")
	base.Debug("base")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if lines[0]["campaign"] != "c-1" {
		t.Fatalf("derived logger lost its field: %#v", lines[0])
	}
	if _, ok := lines[1]["campaign"]; ok {
		t.Fatalf("base logger must not inherit derived fields: %#v", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel("WARNING"); err != nil || level != WarnLevel {
		t.Fatalf("expected warn level, got %v err=%v", level, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}

func TestWithTraceGeneratesIdentifier(t *testing.T) {
	ctx, logger, traceID := WithTrace(context.Background(), NewTestLogger(), "")
	if traceID == "" {
		t.Fatalf("expected generated trace id")
	}
	if TraceIDFromContext(ctx) != traceID {
		t.Fatalf("trace id not stored in context")
	}
	if LoggerFromContext(ctx) != logger {
		t.Fatalf("derived logger not stored in context")
	}
}

func TestHTTPTraceMiddlewarePropagatesHeader(t *testing.T) {
	var seen string
	handler := HTTPTraceMiddleware(NewTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "trace-123" {
		t.Fatalf("expected incoming trace id, got %q", seen)
	}
	if rec.Header().Get(TraceIDHeader) != "trace-123" {
		t.Fatalf("expected trace id echoed in response header")
	}
}

func TestNewWritesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "intercept.log")
	previous := L()
	t.Cleanup(func() { ReplaceGlobals(previous) })

	logger, err := New(config.LoggingConfig{Level: "debug", Path: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Fatalf("expected message in log file, got %s", data)
	}
	if L() != logger {
		t.Fatalf("New should install the logger globally")
	}
}

func TestRotatingWriterRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	writer, err := newRotatingWriter(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	//1.- Shrink the threshold so a handful of writes forces several rotations.
	writer.maxSize = 16
	for i := 0; i < 4; i++ {
		if _, err := writer.Write([]byte("0123456789abcdef")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	rotated := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "rotate.log.") {
			rotated++
		}
	}
	if rotated != 1 {
		t.Fatalf("expected one retained backup, got %d", rotated)
	}
}
