package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

		logger.Debug("hello", "key", "value")

		out := buf.String()
		if !strings.Contains(out, "hello") {
			t.Errorf("expected output to contain message, got %q", out)
		}
		if !strings.Contains(out, "key=value") {
			t.Errorf("expected text attrs, got %q", out)
		}
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{JSON: true})

		logger.Info("hello")

		if !strings.Contains(buf.String(), `"msg":"hello"`) {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

		logger.Info("dropped")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Errorf("info message should have been filtered, got %q", out)
		}
		if !strings.Contains(out, "kept") {
			t.Errorf("warn message missing, got %q", out)
		}
	})
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop returned nil")
	}
	// Must not panic.
	logger.Info("discarded", "key", "value")
}
