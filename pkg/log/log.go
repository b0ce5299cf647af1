// Package log configures the process-wide structured logger shared by the
// protocol components.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default text logger at the given level. Unrecognized
// levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule tags the default logger with a component name. Every
// constructor in this repo takes one of these.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
