package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the component-tagged logging contract used across the engine.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
	// With returns a logger that adds fields to every event.
	With(fields map[string]interface{}) Logger
}

// ParseLevel maps a level name from config or the environment onto a zerolog level.
// Unknown names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds the application logger. Console output is human readable, otherwise JSON lines.
func New(level zerolog.Level, console bool) *ZerologAdapter {
	if console {
		return NewConsoleLogger(level)
	}
	return NewZerolog(os.Stdout, level)
}

// Nop discards everything. Handy for tests.
func Nop() Logger {
	return NewZerolog(io.Discard, zerolog.Disabled)
}
