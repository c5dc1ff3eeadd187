package deviceflow

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Flow
type Option func(*Flow)

// WithLogger sets the logger for poll progress
func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) {
		f.log = l
	}
}

// WithMinInterval sets the smallest poll spacing Run accepts.
// Shorter schedule intervals are raised to it.
func WithMinInterval(d time.Duration) Option {
	return func(f *Flow) {
		f.minInterval = d
	}
}
