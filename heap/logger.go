package heap

import (
	"context"
	"fmt"
	"log/slog"
)

// Logger receives human readable heap events. It never affects results.
type Logger interface {
	Logf(format string, args ...interface{})
}

type NopLogger struct{}

func (NopLogger) Logf(string, ...interface{}) {}

// SlogLogger sends events to slog at Level.
type SlogLogger struct {
	L     *slog.Logger
	Level slog.Level
}

func NewSlogLogger(l *slog.Logger) SlogLogger {
	return SlogLogger{L: l, Level: slog.LevelDebug}
}

func (s SlogLogger) Logf(format string, args ...interface{}) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, s.Level) {
		return
	}
	s.L.Log(ctx, s.Level, fmt.Sprintf(format, args...))
}
