// Package zaplog routes varref log events to a zap logger.
package zaplog

import (
	"fmt"
	"sort"
	"strings"

	varref "github.com/goliatone/go-varref"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger from the logging section of a varref config.
// Development selects zap's development preset; Encoding is "console" or
// "json".
func New(cfg varref.LoggingConfig, opts ...zap.Option) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if cfg.Development {
		config = zap.NewDevelopmentConfig()
	}
	if level := strings.TrimSpace(cfg.Level); level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("zaplog: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(parsed)
	}
	switch encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding)); encoding {
	case "":
	case "console", "json":
		config.Encoding = encoding
	default:
		return nil, fmt.Errorf("zaplog: unknown encoding %q", cfg.Encoding)
	}
	logger, err := config.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("zaplog: build logger: %w", err)
	}
	return logger, nil
}

// Logger adapts a *zap.Logger to varref.Logger.
type Logger struct {
	zap *zap.Logger
}

var _ varref.Logger = (*Logger)(nil)

// Wrap returns a varref.Logger writing to l. A nil l discards events.
func Wrap(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{zap: l}
}

// Log implements varref.Logger. The component becomes the logger name and
// event fields are written in key order.
func (l *Logger) Log(event varref.LogEvent) {
	if l == nil {
		return
	}
	logger := l.zap
	if event.Component != "" {
		logger = logger.Named(event.Component)
	}
	level := zapLevel(event.Level)
	ce := logger.Check(level, event.Message)
	if ce == nil {
		return
	}
	ce.Write(fields(event)...)
}

// Zap returns the wrapped logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

func zapLevel(level varref.LogLevel) zapcore.Level {
	switch level {
	case varref.LevelDebug:
		return zapcore.DebugLevel
	case varref.LevelInfo:
		return zapcore.InfoLevel
	case varref.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func fields(event varref.LogEvent) []zap.Field {
	keys := make([]string, 0, len(event.Fields))
	for key := range event.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+2)
	for _, key := range keys {
		out = append(out, zap.Any(key, event.Fields[key]))
	}
	if event.Duration > 0 {
		out = append(out, zap.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		out = append(out, zap.Error(event.Err))
	}
	return out
}
