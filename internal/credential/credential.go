// Package credential implements username/password login over a device code carrier
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/backend"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/logging"
	"github.com/wrale/authsession/internal/session"
	"github.com/wrale/authsession/internal/validation"
)

// ErrLoginTimeout indicates the backend accepted the credentials but the
// code did not resolve within the fallback poll budget
var ErrLoginTimeout = autherr.New(autherr.ErrTimeout, "login timed out waiting for authorization")

// DefaultSchedule is the fallback poll used when authorize returns no session:
// ten polls spaced 500ms apart, the first after 500ms
var DefaultSchedule = deviceflow.Schedule{Interval: 500 * time.Millisecond, MaxAttempts: 10}

// Backend is the subset of the backend API credential login needs
type Backend interface {
	deviceflow.Backend
	AuthorizeDevice(ctx context.Context, req backend.AuthorizeRequest) (*backend.AuthorizeResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*session.Session, error)
}

// Authenticator resolves sessions from user credentials
type Authenticator struct {
	backend  Backend
	flow     *deviceflow.Flow
	schedule deviceflow.Schedule
	log      zerolog.Logger
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithFlow sets the device flow used to mint and poll the carrier code
func WithFlow(f *deviceflow.Flow) Option {
	return func(a *Authenticator) {
		a.flow = f
	}
}

// WithSchedule sets the fallback poll schedule
func WithSchedule(s deviceflow.Schedule) Option {
	return func(a *Authenticator) {
		a.schedule = s
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(a *Authenticator) {
		a.log = l
	}
}

// New creates an Authenticator over b
func New(b Backend, opts ...Option) *Authenticator {
	a := &Authenticator{
		backend:  b,
		schedule: DefaultSchedule,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.flow == nil {
		a.flow = deviceflow.NewFlow(b, deviceflow.WithLogger(a.log))
	}
	return a
}

// Login authenticates username with password. The backend either returns
// the session directly or approves the carrier code, which is then polled.
func (a *Authenticator) Login(ctx context.Context, username, password, role string) (*session.Session, error) {
	username = validation.NormalizeUsername(username)
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	role, err := validation.NormalizeRole(role)
	if err != nil {
		return nil, err
	}

	auth, err := a.flow.Start(ctx)
	if err != nil {
		return nil, err
	}
	log := a.log.With().Str("code", logging.Code(auth.Code)).Str("username", username).Logger()

	result, err := a.backend.AuthorizeDevice(ctx, backend.AuthorizeRequest{
		Code:     auth.Code,
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		var httpErr *backend.HTTPError
		if errors.As(err, &httpErr) {
			log.Debug().Int("status", httpErr.StatusCode).Msg("credentials rejected")
			return nil, autherr.WithDetail(autherr.ErrInvalidCredentials, httpErr.Detail)
		}
		return nil, err
	}

	if sess := session.New(result.Token, result.User); sess != nil {
		log.Debug().Msg("authorize returned session directly")
		return sess, nil
	}

	log.Debug().Msg("authorize returned no session, polling")
	sess, err := a.flow.Run(ctx, auth.Code, a.schedule, nil)
	if errors.Is(err, deviceflow.ErrPollExhausted) {
		return nil, ErrLoginTimeout
	}
	return sess, err
}

// Register creates an account and returns its session. A 4xx reply is
// reported as invalid credentials carrying the backend's explanation.
func (a *Authenticator) Register(ctx context.Context, username, email, password, role string) (*session.Session, error) {
	username = validation.NormalizeUsername(username)
	if err := validation.ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	role, err := validation.NormalizeRole(role)
	if err != nil {
		return nil, err
	}

	sess, err := a.backend.Register(ctx, backend.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     role,
	})
	if err != nil {
		var httpErr *backend.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= http.StatusBadRequest && httpErr.StatusCode < http.StatusInternalServerError {
			return nil, autherr.WithDetail(autherr.ErrInvalidCredentials, httpErr.Detail)
		}
		return nil, fmt.Errorf("register %s: %w", username, err)
	}
	a.log.Debug().Str("username", username).Msg("account registered")
	return sess, nil
}
