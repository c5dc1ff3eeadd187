package auth

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/authsession/internal/dependent"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/popup"
)

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger handed to every component
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithDependent sets the credential that follows the session token
func WithDependent(c dependent.Credential) Option {
	return func(m *Manager) {
		m.credential = c
	}
}

// WithOpener sets how provider authorization windows are opened
func WithOpener(o popup.Opener) Option {
	return func(m *Manager) {
		m.opener = o
	}
}

// WithSchedules overrides the poll schedules. Zero-valued schedules keep the default.
func WithSchedules(s Schedules) Option {
	return func(m *Manager) {
		if s.Device.Interval > 0 {
			m.schedules.Device = s.Device
		}
		if s.Credential.Interval > 0 {
			m.schedules.Credential = s.Credential
		}
		if s.Provider.Interval > 0 {
			m.schedules.Provider = s.Provider
		}
	}
}

// WithPopupTiming sets the window closed-check interval and hard timeout
func WithPopupTiming(checkInterval, timeout time.Duration) Option {
	return func(m *Manager) {
		if checkInterval > 0 {
			m.popupCheck = checkInterval
		}
		if timeout > 0 {
			m.popupTimeout = timeout
		}
	}
}

// WithMinPollInterval sets the smallest poll spacing accepted by any schedule
func WithMinPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.minPoll = d
	}
}

// Schedules groups the poll schedule of each login path
type Schedules struct {
	Device     deviceflow.Schedule
	Credential deviceflow.Schedule
	Provider   deviceflow.Schedule
}
