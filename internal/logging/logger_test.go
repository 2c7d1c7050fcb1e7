package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "test", LevelWarn)

	logger.Debug("dropped %d", 1)
	logger.Info("dropped %d", 2)
	logger.Warn("kept %d", 3)
	logger.Error("kept %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept 3")
	assert.Contains(t, out, "kept 4")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestComponentTag(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "scoring", LevelDebug)
	logger.Info("hello")
	assert.Contains(t, buf.String(), "[scoring]")
	assert.Contains(t, buf.String(), "[INFO]")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "", LevelDebug)
	assert.Equal(t, logger, OrNop(logger))

	// Nop logger must be safe to call.
	OrNop(nil).Error("ignored %v", 42)
}
