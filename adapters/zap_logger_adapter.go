package adapters

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerAdapter implements LoggerAdapter on a zap logger.
type ZapLoggerAdapter struct {
	log *zap.SugaredLogger
}

// Ensure ZapLoggerAdapter implements LoggerAdapter interface
var _ LoggerAdapter = (*ZapLoggerAdapter)(nil)

// NewZapLoggerAdapter wraps l. A nil logger discards everything.
func NewZapLoggerAdapter(l *zap.Logger) *ZapLoggerAdapter {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLoggerAdapter{log: l.Named("pulse").Sugar()}
}

// NewProductionLoggerAdapter builds a JSON logger on stderr at level.
// LogLevelNone returns a logger that discards everything.
func NewProductionLoggerAdapter(level LogLevel) (*ZapLoggerAdapter, error) {
	if level == LogLevelNone {
		return NewZapLoggerAdapter(zap.NewNop()), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLoggerAdapter(l), nil
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	}
	return zapcore.WarnLevel
}

func (z *ZapLoggerAdapter) Debug(message string, args ...any) { z.log.Debugw(message, args...) }
func (z *ZapLoggerAdapter) Info(message string, args ...any)  { z.log.Infow(message, args...) }
func (z *ZapLoggerAdapter) Warn(message string, args ...any)  { z.log.Warnw(message, args...) }
func (z *ZapLoggerAdapter) Error(message string, args ...any) { z.log.Errorw(message, args...) }

// Sync flushes buffered log entries.
func (z *ZapLoggerAdapter) Sync() error {
	return z.log.Sync()
}
