package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/wrale/authsession/internal/session"
)

// Attempt kinds
const (
	KindDevice   = "device"
	KindPassword = "password"
	KindRegister = "register"
	KindProvider = "provider"
)

// attempt is one login in flight. Only the current, unresolved attempt may
// write the session.
type attempt struct {
	id     string
	kind   string
	ctx    context.Context
	cancel context.CancelFunc

	// resolved is guarded by Manager.mu
	resolved bool
}

// begin starts an attempt and cancels the previous one
func (m *Manager) begin(parent context.Context, kind string) *attempt {
	ctx, cancel := context.WithCancel(parent)
	a := &attempt{id: uuid.NewString(), kind: kind, ctx: ctx, cancel: cancel}

	m.mu.Lock()
	prev := m.current
	m.current = a
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		m.log.Debug().Str("attempt", prev.id).Str("kind", prev.kind).Msg("login attempt superseded")
	}
	m.log.Debug().Str("attempt", a.id).Str("kind", kind).Msg("login attempt started")
	return a
}

// resolve ends a. A successful result is committed to the session only if a
// is still current; the store write and the credential update happen before
// any later attempt can begin or a logout can clear.
func (m *Manager) resolve(a *attempt, sess *session.Session, err error) (*session.Session, error) {
	defer a.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != a || a.resolved {
		m.log.Debug().Str("attempt", a.id).Msg("discarding result of superseded attempt")
		return nil, ErrSuperseded
	}
	a.resolved = true
	m.current = nil

	log := m.log.With().Str("attempt", a.id).Str("kind", a.kind).Logger()
	if err != nil {
		log.Debug().Err(err).Msg("login attempt failed")
		return nil, err
	}

	if err := m.keeper.Set(a.ctx, sess); err != nil {
		log.Error().Err(err).Msg("storing session failed")
		return nil, err
	}
	if err := m.credential.Update(a.ctx, sess.Token); err != nil {
		log.Error().Err(err).Msg("updating provider api key failed")
	}
	log.Info().Str("username", sess.User.Username).Msg("logged in")
	return sess, nil
}

// inFlight reports whether an unresolved attempt exists
func (m *Manager) inFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.resolved
}
