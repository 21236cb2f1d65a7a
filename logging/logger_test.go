package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestLoggerWritesStructuredOutput tests that messages reach a registered writer with level,
// message body, and structured context intact.
func TestLoggerWritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.DebugLevel, &buf)

	logger.Info("stepping path", StructuredLogInfo{"path": "p1", "addr": "0x1000"})

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "stepping path", entry["message"])
	info, ok := entry["info"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "p1", info["path"])
}

// TestSubLoggerCarriesModuleKey tests that derived loggers stamp every message with their
// key-value pair.
func TestSubLoggerCarriesModuleKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.DebugLevel, &buf).NewSubLogger("module", "path")

	logger.Debug("captured transfer failure", errors.New("lift failed"))

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "path", entry["module"])
	assert.Equal(t, "lift failed", entry["error"])
}

// TestLoggerLevelGate tests that messages below the configured level are dropped.
func TestLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.WarnLevel, &buf)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())

	logger.SetLevel(zerolog.InfoLevel)
	buf.Reset()
	logger.Info("now visible")
	assert.NotZero(t, buf.Len())
}

// TestSubLoggerSeesLaterConfiguration tests that a sub-logger derived while the root logger is
// still disabled starts emitting once the root is leveled and given a writer, as happens when
// packages derive their loggers at init and the application configures the root afterwards.
func TestSubLoggerSeesLaterConfiguration(t *testing.T) {
	root := NewLogger(zerolog.Disabled)
	sub := root.NewSubLogger("module", "path")
	deep := sub.NewSubLogger("component", "callstack")

	var buf bytes.Buffer
	root.SetLevel(zerolog.InfoLevel)
	root.AddWriter(&buf)

	sub.Info("call stack unbalanced, pushing sentinel frame", StructuredLogInfo{"path": "p1"})

	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "path", entry["module"])
	assert.Equal(t, "call stack unbalanced, pushing sentinel frame", entry["message"])

	buf.Reset()
	deep.Info("visited")
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "path", entry["module"])
	assert.Equal(t, "callstack", entry["component"])
}

// TestAddWriterDeduplicates tests that registering the same writer twice keeps one sink.
func TestAddWriterDeduplicates(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.InfoLevel)
	logger.AddWriter(&buf)
	logger.AddWriter(&buf)

	logger.Info("once")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("once")))
}
