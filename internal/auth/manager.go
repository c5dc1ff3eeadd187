// Package auth composes the login paths, the session keeper and the refresh
// policy behind one Manager
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/authsession/internal/credential"
	"github.com/wrale/authsession/internal/dependent"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/popup"
	"github.com/wrale/authsession/internal/refresh"
	"github.com/wrale/authsession/internal/session"
)

// Backend is the backend API used by every login path
type Backend interface {
	credential.Backend
	popup.Backend
	refresh.Backend
}

// Manager owns the session and every login attempt
type Manager struct {
	keeper     *session.Keeper
	credential dependent.Credential
	opener     popup.Opener
	log        zerolog.Logger

	schedules    Schedules
	popupCheck   time.Duration
	popupTimeout time.Duration
	minPoll      time.Duration

	flow      *deviceflow.Flow
	passwords *credential.Authenticator
	providers *popup.Authenticator
	policy    *refresh.Policy

	// mu guards the attempts and pairs every session write with the
	// matching dependent credential write
	mu       sync.Mutex
	current  *attempt
	device   *DeviceLogin
	provider *ProviderLogin
}

// NewManager creates a Manager writing sessions through keeper
func NewManager(keeper *session.Keeper, b Backend, opts ...Option) *Manager {
	m := &Manager{
		keeper:     keeper,
		credential: dependent.Nop{},
		opener:     popup.NewRelay(popup.BrowserLauncher, zerolog.Nop()),
		log:        zerolog.Nop(),
		schedules: Schedules{
			Device:     deviceflow.DefaultSchedule,
			Credential: credential.DefaultSchedule,
			Provider:   popup.DefaultSchedule,
		},
		popupCheck:   popup.DefaultCheckInterval,
		popupTimeout: popup.DefaultTimeout,
		minPoll:      deviceflow.MinPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.flow = deviceflow.NewFlow(b,
		deviceflow.WithLogger(m.log.With().Str("component", "deviceflow").Logger()),
		deviceflow.WithMinInterval(m.minPoll),
	)
	m.passwords = credential.New(b,
		credential.WithFlow(m.flow),
		credential.WithSchedule(m.schedules.Credential),
		credential.WithLogger(m.log.With().Str("component", "credential").Logger()),
	)
	m.providers = popup.New(b, m.opener,
		popup.WithFlow(m.flow),
		popup.WithSchedule(m.schedules.Provider),
		popup.WithCheckInterval(m.popupCheck),
		popup.WithTimeout(m.popupTimeout),
		popup.WithLogger(m.log.With().Str("component", "popup").Logger()),
	)
	m.policy = refresh.NewPolicy(keeper, refresh.NewRefresher(b), m.credential,
		refresh.WithLogger(m.log.With().Str("component", "refresh").Logger()),
		refresh.WithCommitLock(&m.mu),
	)
	return m
}

// Login authenticates with a username and password
func (m *Manager) Login(ctx context.Context, username, password, role string) (*session.Session, error) {
	a := m.begin(ctx, KindPassword)
	sess, err := m.passwords.Login(a.ctx, username, password, role)
	return m.resolve(a, sess, err)
}

// Register creates an account and logs into it
func (m *Manager) Register(ctx context.Context, username, email, password, role string) (*session.Session, error) {
	a := m.begin(ctx, KindRegister)
	sess, err := m.passwords.Register(a.ctx, username, email, password, role)
	return m.resolve(a, sess, err)
}

// LoginWithProvider runs a provider login and waits for it
func (m *Manager) LoginWithProvider(ctx context.Context) (*session.Session, error) {
	p := m.StartProviderLogin(ctx)
	select {
	case <-p.Done():
		return p.Result()
	case <-ctx.Done():
		p.Cancel()
		<-p.Done()
		return nil, fmt.Errorf("provider login: %w", ctx.Err())
	}
}

// Status refreshes the held token and reports the session state. An empty
// store with a login in flight reads as pending.
func (m *Manager) Status(ctx context.Context) (refresh.AuthStatus, error) {
	st, err := m.policy.Status(ctx)
	if err != nil {
		return st, err
	}
	if st.Status == refresh.StatusLoggedOut && !st.TokenExpired && m.inFlight() {
		st.Status = refresh.StatusPending
	}
	return st, nil
}

// Session returns the held session, or nil
func (m *Manager) Session(ctx context.Context) (*session.Session, error) {
	return m.keeper.Get(ctx)
}

// Cancel abandons the login in flight, if any
func (m *Manager) Cancel() {
	m.mu.Lock()
	a := m.current
	m.current = nil
	m.mu.Unlock()

	if a != nil {
		a.cancel()
		m.log.Debug().Str("attempt", a.id).Msg("login attempt canceled")
	}
}

// Logout abandons any login in flight and clears the session together with
// the dependent credential
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a := m.current; a != nil {
		m.current = nil
		a.cancel()
	}

	var errs []error
	if err := m.keeper.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing session: %w", err))
	}
	if err := m.credential.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		m.log.Info().Msg("logged out")
	}
	return errors.Join(errs...)
}

// CheckHealth verifies the session store and the dependent credential
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.keeper.CheckHealth(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if err := m.credential.CheckHealth(ctx); err != nil {
		return fmt.Errorf("dependent credential: %w", err)
	}
	return nil
}
