// Package logging builds the zerolog loggers used across the agent
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger for environment. An empty or unknown level
// falls back to debug outside production and info in production.
func New(environment, level string) zerolog.Logger {
	return NewWithWriter(os.Stderr, environment, level)
}

// NewWithWriter is New writing to w
func NewWithWriter(w io.Writer, environment, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	zerolog.SetGlobalLevel(ParseLevel(environment, level))
	return logger
}

// ParseLevel resolves the configured level name
func ParseLevel(environment, level string) zerolog.Level {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		return lvl
	}
	if environment == "production" {
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// Code shortens a device code for log fields
func Code(code string) string {
	if len(code) > 8 {
		return code[:8]
	}
	return code
}
