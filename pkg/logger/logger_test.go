package logger

import (
	"bytes"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(log.New(&buf, "", 0), Debug, "[test]")

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message", "channel", "bark", "status", 200)
		output := buf.String()
		assert.Contains(t, output, "[test] [INFO] info message")
		assert.Contains(t, output, "channel=bark")
		assert.Contains(t, output, "status=200")
	})

	t.Run("Debug", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Contains(t, buf.String(), "[DEBUG] debug message")
	})

	t.Run("odd key/value count", func(t *testing.T) {
		buf.Reset()
		logger.Error("broken", "dangling")
		assert.Contains(t, buf.String(), "dangling=(no value)")
	})
}

func TestStandardLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	warnLogger := NewStandardLogger(log.New(&buf, "", 0), Warn, "[test]")

	warnLogger.Info("info message")
	assert.Zero(t, buf.Len(), "info should not be logged at warn level")

	warnLogger.Warn("warn message")
	assert.Contains(t, buf.String(), "[WARN] warn message")

	buf.Reset()
	warnLogger.LogMode(Silent).Error("hidden")
	assert.Zero(t, buf.Len())
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := NewSlogLogger(base, Info)
	l.Debug("filtered")
	assert.Zero(t, buf.Len())

	l.Warn("sent", "channel", "ntfy")
	out := buf.String()
	assert.True(t, strings.Contains(out, "level=WARN"), out)
	assert.Contains(t, out, "channel=ntfy")

	buf.Reset()
	l.LogMode(Debug).Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"silent", Silent},
		{"ERROR", Error},
		{"warning", Warn},
		{"", Info},
		{" debug ", Debug},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.Equal(t, strings.ToLower(strings.TrimSpace(tt.in))[:3], got.String()[:3])
			}
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestOrDiscard(t *testing.T) {
	assert.Equal(t, Discard, OrDiscard(nil))
	l := New()
	assert.Equal(t, l, OrDiscard(l))
}
