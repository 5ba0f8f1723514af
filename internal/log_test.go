package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"ERROR", LogLevelError},
		{"warn", LogLevelWarn},
		{" debug ", LogLevelDebug},
		{"TRACE", LogLevelTrace},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLogLevel(tt.input), "input %q", tt.input)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNopLogger().With("component", "test")
	assert.Equal(t, LogLevelError, logger.GetLevel())

	// must not panic on any level
	logger.Error("e %d", 1)
	logger.Warn("w")
	logger.Info("i")
	logger.Debug("d")
	logger.Trace("t")
	logger.Sync()
}
