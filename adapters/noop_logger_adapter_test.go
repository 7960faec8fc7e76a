package adapters

import (
	"testing"
)

func TestNoOpLoggerAdapter(t *testing.T) {
	logger := NewNoOpLoggerAdapter()

	// Test all methods - they should not panic and do nothing
	logger.Debug("debug message", "method", "track")
	logger.Info("info message", "method", "track")
	logger.Warn("warn message", "method", "track")
	logger.Error("error message", "method", "track")

	// odd and nil arguments are ignored too
	logger.Warn("message", nil)
	logger.Error("message", "dangling")
}
