package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/wrale/authsession/internal/dependent"
	"github.com/wrale/authsession/internal/session"
)

// Auth status values
const (
	StatusLoggedOut = "logged_out"
	StatusPending   = "pending"
	StatusLoggedIn  = "logged_in"
)

// AuthStatus is the session state reported to the UI
type AuthStatus struct {
	Status         string            `json:"status"`
	IsLoggedIn     bool              `json:"is_logged_in"`
	User           *session.UserInfo `json:"user_info,omitempty"`
	TokenExpired   bool              `json:"token_expired,omitempty"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
}

// LoggedOut is the status of an empty store
func LoggedOut() AuthStatus {
	return AuthStatus{Status: StatusLoggedOut}
}

// LoggedIn is the status of s
func LoggedIn(s *session.Session) AuthStatus {
	if s == nil {
		return LoggedOut()
	}
	st := AuthStatus{Status: StatusLoggedIn, IsLoggedIn: true, User: s.User}
	if exp, ok := session.TokenExpiry(s.Token); ok {
		st.TokenExpiresAt = &exp
	}
	return st
}

// Policy refreshes the stored token whenever the status is read
type Policy struct {
	keeper     *session.Keeper
	refresher  *Refresher
	credential dependent.Credential
	log        zerolog.Logger
	group      singleflight.Group

	// commit is held across the session write and the credential follow-up
	commit sync.Locker
}

// PolicyOption configures a Policy
type PolicyOption func(*Policy)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) PolicyOption {
	return func(p *Policy) {
		p.log = l
	}
}

// WithCommitLock sets the lock held while a refresh result is written to the
// session and the credential. Writers that pair the session with the
// credential elsewhere must hold the same lock.
func WithCommitLock(l sync.Locker) PolicyOption {
	return func(p *Policy) {
		p.commit = l
	}
}

// NewPolicy creates a policy over keeper. credential follows the token.
func NewPolicy(keeper *session.Keeper, refresher *Refresher, credential dependent.Credential, opts ...PolicyOption) *Policy {
	p := &Policy{
		keeper:     keeper,
		refresher:  refresher,
		credential: credential,
		log:        zerolog.Nop(),
		commit:     &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status refreshes the held token once and reports the resulting state.
// Concurrent calls for the same token share one refresh. A refresh result
// is applied only while the token it refreshed is still the stored one.
func (p *Policy) Status(ctx context.Context) (AuthStatus, error) {
	cur, err := p.keeper.Get(ctx)
	if err != nil {
		return LoggedOut(), err
	}
	if cur == nil {
		return LoggedOut(), nil
	}

	v, _, _ := p.group.Do(cur.Token, func() (any, error) {
		return p.refresher.Refresh(ctx, cur.Token), nil
	})

	switch o := v.(Outcome).(type) {
	case Refreshed:
		return p.applyRefreshed(ctx, cur, o.Token)
	case DefinitelyExpired:
		return p.applyExpired(ctx, cur)
	case TransientFailure:
		p.log.Warn().Err(o.Err).Msg("token refresh failed, keeping current token")
	}
	return LoggedIn(cur), nil
}

func (p *Policy) applyRefreshed(ctx context.Context, cur *session.Session, token string) (AuthStatus, error) {
	p.commit.Lock()
	defer p.commit.Unlock()

	replaced := false
	next, err := p.keeper.Update(ctx, func(s *session.Session) (*session.Session, error) {
		if s == nil || s.Token != cur.Token {
			return s, nil
		}
		replaced = true
		return s.WithToken(token), nil
	})
	if err != nil {
		p.log.Error().Err(err).Msg("storing refreshed token failed")
		return LoggedIn(cur), err
	}
	if replaced {
		p.log.Debug().Msg("token refreshed")
		if err := p.credential.Update(ctx, token); err != nil {
			p.log.Error().Err(err).Msg("updating provider api key failed")
		}
	}
	return LoggedIn(next), nil
}

func (p *Policy) applyExpired(ctx context.Context, cur *session.Session) (AuthStatus, error) {
	p.commit.Lock()
	defer p.commit.Unlock()

	cleared := false
	next, err := p.keeper.Update(ctx, func(s *session.Session) (*session.Session, error) {
		if s == nil || s.Token != cur.Token {
			return s, nil
		}
		cleared = true
		return nil, nil
	})
	if err != nil {
		p.log.Error().Err(err).Msg("clearing expired session failed")
		return LoggedOut(), err
	}
	if !cleared {
		return LoggedIn(next), nil
	}

	p.log.Info().Msg("token expired, session cleared")
	if err := p.credential.Clear(ctx); err != nil {
		p.log.Error().Err(err).Msg("clearing provider api key failed")
	}
	st := LoggedOut()
	st.TokenExpired = true
	return st, nil
}
