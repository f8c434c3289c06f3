package logging

import (
	"log/slog"
	"os"
)

// Logger is a thin wrapper around slog that pins a component name, so
// every line from a subsystem is attributable.
type Logger struct {
	inner *slog.Logger
}

// Init installs the process-wide default handler: JSON in production,
// text everywhere else.
func Init(env string) {
	options := &slog.HandlerOptions{Level: slog.LevelDebug}

	var handler slog.Handler
	if env == "production" {
		options.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, options)
	} else {
		handler = slog.NewTextHandler(os.Stdout, options)
	}
	slog.SetDefault(slog.New(handler))
}

// NewLogger returns a logger tagged with the given component.
func NewLogger(component string) *Logger {
	return &Logger{inner: slog.Default().With("component", component)}
}

func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }

func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}
