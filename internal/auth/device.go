package auth

import (
	"context"
	"errors"
	"time"

	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/deviceflow"
)

// eventBuffer bounds undelivered device events; Progress stays authoritative
const eventBuffer = 16

// DeviceLogin is a device authorization being polled in the background
type DeviceLogin struct {
	*tracker

	Code      string
	ExpiresAt time.Time

	m       *Manager
	attempt *attempt
	events  chan deviceflow.Event
}

// StartDeviceLogin mints a device code and polls it until it resolves. The
// polling outlives ctx; stop it with Cancel.
func (m *Manager) StartDeviceLogin(ctx context.Context) (*DeviceLogin, error) {
	a := m.begin(context.WithoutCancel(ctx), KindDevice)

	auth, err := m.flow.Start(ctx)
	if err != nil {
		_, err = m.resolve(a, nil, err)
		return nil, err
	}

	d := &DeviceLogin{
		tracker:   newTracker(deviceflow.StateRequested.String()),
		Code:      auth.Code,
		ExpiresAt: auth.ExpiresAt,
		m:         m,
		attempt:   a,
		events:    make(chan deviceflow.Event, eventBuffer),
	}

	m.mu.Lock()
	m.device = d
	m.mu.Unlock()

	go d.run()
	return d, nil
}

// CurrentDevice returns the most recent device login
func (m *Manager) CurrentDevice() (*DeviceLogin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil, ErrNoAttempt
	}
	return m.device, nil
}

// Events delivers poll events. It is closed when the login finishes.
// Events are dropped when the reader falls behind.
func (d *DeviceLogin) Events() <-chan deviceflow.Event {
	return d.events
}

// Progress returns the current state
func (d *DeviceLogin) Progress() Progress {
	return d.snapshot()
}

// Cancel stops polling. The login finishes with ErrSuperseded.
func (d *DeviceLogin) Cancel() {
	d.m.abandon(d.attempt)
}

func (d *DeviceLogin) run() {
	defer close(d.events)

	d.set(deviceflow.StatePolling.String(), "")
	sess, err := d.m.flow.Run(d.attempt.ctx, d.Code, d.m.schedules.Device, d.observe)
	sess, err = d.m.resolve(d.attempt, sess, err)

	state := deviceflow.StateAuthorized
	switch {
	case errors.Is(err, autherr.ErrExpired):
		state = deviceflow.StateExpired
	case err != nil:
		state = deviceflow.StateError
	}
	d.finish(state.String(), sess, err)
}

func (d *DeviceLogin) observe(e deviceflow.Event) {
	msg := e.Message
	if e.Err != nil {
		_, msg = autherr.Describe(e.Err)
	}
	if !e.State().Terminal() {
		d.set(e.State().String(), msg)
	}

	select {
	case d.events <- e:
	default:
	}
}
