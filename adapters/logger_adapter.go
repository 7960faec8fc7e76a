package adapters

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelNone  LogLevel = "NONE"
)

// Valid reports whether l is a known level. The empty level is not.
func (l LogLevel) Valid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelNone:
		return true
	}
	return false
}

// LoggerAdapter is the diagnostic sink of the client.
// Implement this interface to use custom loggers.
//
// args are alternating key/value pairs, for example
//
//	logger.Warn("call rejected", "method", "track", "kind", "invalid_input")
type LoggerAdapter interface {
	// Debug logs a debug message
	Debug(message string, args ...any)
	// Info logs an info message
	Info(message string, args ...any)
	// Warn logs a warning message
	Warn(message string, args ...any)
	// Error logs an error message
	Error(message string, args ...any)
}
