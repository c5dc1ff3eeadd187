package auth

import (
	"context"
	"errors"

	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/popup"
)

// Provider login states
const (
	ProviderStarting   = "starting"
	ProviderOpened     = "opened"
	ProviderResolving  = "resolving"
	ProviderAuthorized = "authorized"
	ProviderExpired    = "expired"
	ProviderFailed     = "failed"
)

// ProviderLogin is a provider popup login running in the background
type ProviderLogin struct {
	*tracker

	m       *Manager
	attempt *attempt
}

// StartProviderLogin begins a provider login. It outlives ctx; stop it with Cancel.
func (m *Manager) StartProviderLogin(ctx context.Context) *ProviderLogin {
	a := m.begin(context.WithoutCancel(ctx), KindProvider)
	p := &ProviderLogin{
		tracker: newTracker(ProviderStarting),
		m:       m,
		attempt: a,
	}

	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()

	go p.run()
	return p
}

// CurrentProvider returns the most recent provider login
func (m *Manager) CurrentProvider() (*ProviderLogin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.provider == nil {
		return nil, ErrNoAttempt
	}
	return m.provider, nil
}

// Progress returns the current state
func (p *ProviderLogin) Progress() Progress {
	return p.snapshot()
}

// Cancel abandons the login and closes its window
func (p *ProviderLogin) Cancel() {
	p.m.abandon(p.attempt)
}

func (p *ProviderLogin) run() {
	sess, err := p.m.providers.Login(p.attempt.ctx, p.observe)
	sess, err = p.m.resolve(p.attempt, sess, err)

	state := ProviderAuthorized
	switch {
	case errors.Is(err, autherr.ErrExpired):
		state = ProviderExpired
	case err != nil:
		state = ProviderFailed
	}
	p.finish(state, sess, err)
}

func (p *ProviderLogin) observe(e popup.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Stage {
	case popup.StageOpened:
		p.state = ProviderOpened
		p.authURL = e.AuthURL
	case popup.StageResolving:
		p.state = ProviderResolving
	}
}
