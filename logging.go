package varref

import "time"

// LogLevel orders log events by severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LogEvent describes something worth recording. Recoverable failures such
// as catalog fetch errors are only ever reported through this channel.
type LogEvent struct {
	Level     LogLevel
	Component string
	Message   string
	Fields    map[string]any
	Duration  time.Duration
	Err       error
}

// Logger records log events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// WithLogger attaches a logger. A nil logger disables logging.
func WithLogger(logger Logger) Option {
	return func(cfg *settings) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// componentLogger stamps a component name on every event.
type componentLogger struct {
	logger    Logger
	component string
}

func newComponentLogger(logger Logger, component string) componentLogger {
	if logger == nil {
		logger = noopLogger{}
	}
	return componentLogger{logger: logger, component: component}
}

func (l componentLogger) log(level LogLevel, msg string, err error, fields map[string]any) {
	l.logger.Log(LogEvent{
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fields,
		Err:       err,
	})
}

func (l componentLogger) debug(msg string, fields map[string]any) {
	l.log(LevelDebug, msg, nil, fields)
}

func (l componentLogger) warn(msg string, err error, fields map[string]any) {
	l.log(LevelWarn, msg, err, fields)
}

func (l componentLogger) timed(level LogLevel, msg string, started time.Time, err error, fields map[string]any) {
	l.logger.Log(LogEvent{
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fields,
		Duration:  time.Since(started),
		Err:       err,
	})
}
