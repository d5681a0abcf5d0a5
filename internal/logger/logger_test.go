package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/safeguard-go/internal/logger"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestModuleScopingAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
	log := base.Module("dispatch").Module("mqtt").With(logger.String("session", "s-1"))

	log.Info("alert published",
		logger.String("threat", "falling"),
		logger.Int("entity", 3),
		logger.Float64("speed", 0.312345),
		logger.Duration("latency", 1500*time.Microsecond),
		logger.Error(errors.New("boom")))

	records := decodeLines(t, buf)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "dispatch.mqtt", rec["module"])
	assert.Equal(t, "s-1", rec["session"])
	assert.Equal(t, "falling", rec["threat"])
	assert.InDelta(t, 3, rec["entity"], 0)
	assert.InDelta(t, 0.312, rec["speed"], 1e-9)
	assert.Equal(t, "2ms", rec["latency"])
	assert.Equal(t, "boom", rec["error"])
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelWarn, time.UTC)
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Log(logger.LogLevelError, "shown too")

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "shown", records[0]["msg"])
	assert.Equal(t, "ERROR", records[1]["level"])
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)

	log.WithContext(logger.WithTraceID(context.Background(), "abc-123")).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "abc-123", records[0]["trace_id"])
	assert.NotContains(t, records[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "safeguard.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
	})
	require.NoError(t, err)

	cl.Module("session").Info("session opened", logger.String("user", "u1"))
	require.NoError(t, cl.Close())

	assert.FileExists(t, path)
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = logger.NewCentralLogger(nil)
	require.Error(t, err)
}
