package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskboard.log")
	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.Info("[task][list][ok]", zap.Int("count", 3))
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"message":"[task][list][ok]"`) || !strings.Contains(string(raw), `"count":3`) {
		t.Fatalf("unexpected log line: %s", raw)
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	l, err := New(Config{Level: "warn", Format: "console", Output: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")
	_ = l.Sync()

	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "hidden") || !strings.Contains(string(raw), "shown") {
		t.Fatalf("level filter not applied: %s", raw)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := RequestID(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := RequestID(WithRequestID(context.Background(), "")); got == "" {
		t.Fatalf("expected generated id")
	}
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
