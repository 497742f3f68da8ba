package layoutmap

import "time"

// LogEvent describes one store, session or resolver operation.
type LogEvent struct {
	Op       string
	Target   string
	Duration time.Duration
	Err      error
	// Skipped is set when an operation was intentionally a no-op, such as
	// a command issued before load or a layout update on an unknown map.
	Skipped bool
}

// Logger records operation events.
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

func loggerOrNoop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}
