package pulse

import (
	"github.com/Tap30/pulse-go/adapters"
	"github.com/Tap30/pulse-go/channel"
)

// Library identity reported with every tracked event.
const (
	LibName    = "pulse-go"
	LibVersion = "1.4.0"
)

// Re-export adapter types for convenience
type (
	Adapter          = adapters.Adapter
	LoggerAdapter    = adapters.LoggerAdapter
	LogLevel         = adapters.LogLevel
	NativeFactory    = adapters.NativeFactory
	NativeSDK        = adapters.NativeSDK
	NativeOptions    = adapters.NativeOptions
	NativeProperties = adapters.NativeProperties
	ScriptHost       = adapters.ScriptHost
	ScriptCall       = adapters.ScriptCall
	Messenger        = channel.Messenger
)

// Re-export log levels
const (
	LogLevelDebug = adapters.LogLevelDebug
	LogLevelInfo  = adapters.LogLevelInfo
	LogLevelWarn  = adapters.LogLevelWarn
	LogLevelError = adapters.LogLevelError
	LogLevelNone  = adapters.LogLevelNone
)
