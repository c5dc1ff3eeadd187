// Package popup implements third-party login through an authorization window
package popup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/backend"
	"github.com/wrale/authsession/internal/deviceflow"
	"github.com/wrale/authsession/internal/logging"
	"github.com/wrale/authsession/internal/session"
)

// Defaults for the window race
const (
	DefaultCheckInterval = 500 * time.Millisecond
	DefaultTimeout       = 300 * time.Second
)

// DefaultSchedule resolves a code after the window closes: up to 60 polls a second apart
var DefaultSchedule = deviceflow.Schedule{Interval: time.Second, MaxAttempts: 60, Immediate: true}

// Backend is the subset of the backend API the popup flow needs
type Backend interface {
	deviceflow.Backend
	StartGoogleAuth(ctx context.Context) (*backend.ProviderAuthorization, error)
}

// Stage marks progress through a popup login
type Stage string

// Popup login stages
const (
	StageOpened    Stage = "opened"
	StageResolving Stage = "resolving"
)

// Event reports popup login progress
type Event struct {
	Stage   Stage
	Code    string
	AuthURL string
	// Trigger is the race branch that started resolution
	Trigger string
}

// Race branches
const (
	TriggerMessage = "message"
	TriggerClosed  = "closed"
)

// Authenticator resolves sessions through a provider authorization window
type Authenticator struct {
	backend       Backend
	opener        Opener
	flow          *deviceflow.Flow
	checkInterval time.Duration
	timeout       time.Duration
	schedule      deviceflow.Schedule
	log           zerolog.Logger
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithFlow sets the device flow used to poll the provider code
func WithFlow(f *deviceflow.Flow) Option {
	return func(a *Authenticator) {
		a.flow = f
	}
}

// WithCheckInterval sets how often the window is checked for closure
func WithCheckInterval(d time.Duration) Option {
	return func(a *Authenticator) {
		a.checkInterval = d
	}
}

// WithTimeout sets the hard deadline for the window race
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.timeout = d
	}
}

// WithSchedule sets the poll schedule used once the window has closed
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

// New creates an Authenticator that opens windows with opener
func New(b Backend, opener Opener, opts ...Option) *Authenticator {
	a := &Authenticator{
		backend:       b,
		opener:        opener,
		checkInterval: DefaultCheckInterval,
		timeout:       DefaultTimeout,
		schedule:      DefaultSchedule,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.flow == nil {
		a.flow = deviceflow.NewFlow(b, deviceflow.WithLogger(a.log))
	}
	return a
}

// Login opens the provider's authorization page and waits for the window to
// report success, close, or time out. onEvent, if set, sees progress.
func (a *Authenticator) Login(ctx context.Context, onEvent func(Event)) (*session.Session, error) {
	emit := func(e Event) {
		if onEvent != nil {
			onEvent(e)
		}
	}

	auth, err := a.backend.StartGoogleAuth(ctx)
	if err != nil {
		return nil, err
	}
	log := a.log.With().Str("code", logging.Code(auth.Code)).Logger()

	win, err := a.opener.Open(ctx, auth.AuthURL)
	if err != nil {
		log.Debug().Err(err).Msg("opening authorization window failed")
		return nil, fmt.Errorf("%w: %v", autherr.ErrPopupBlocked, err)
	}
	emit(Event{Stage: StageOpened, Code: auth.Code, AuthURL: auth.AuthURL})

	trigger, err := a.race(ctx, win)
	if err != nil {
		log.Debug().Err(err).Msg("authorization window race ended without resolution")
		return nil, err
	}
	log.Debug().Str("trigger", trigger).Msg("resolving provider code")
	emit(Event{Stage: StageResolving, Code: auth.Code, AuthURL: auth.AuthURL, Trigger: trigger})

	if trigger == TriggerMessage {
		sess, done, err := a.resolveOnce(ctx, auth.Code)
		if done {
			return sess, err
		}
		log.Debug().Msg("code not yet authorized after success message, polling")
	}
	return a.flow.Run(ctx, auth.Code, a.schedule, nil)
}

// race waits for the first of a success message, the window closing, or the
// deadline. The window is closed and the ticker and deadline released before
// it returns.
func (a *Authenticator) race(ctx context.Context, win Window) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	messages := win.Messages()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			if msg.Type != SuccessMessage {
				continue
			}
			_ = win.Close()
			return TriggerMessage, nil
		case <-ticker.C:
			if win.Closed() {
				_ = win.Close()
				return TriggerClosed, nil
			}
		case <-deadline.Done():
			_ = win.Close()
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", autherr.ErrCanceled, ctx.Err())
			}
			return "", ErrPopupTimeout
		}
	}
}

// resolveOnce polls code a single time. done is false when the code is
// still pending or the poll failed transiently.
func (a *Authenticator) resolveOnce(ctx context.Context, code string) (sess *session.Session, done bool, err error) {
	result, err := a.flow.Poll(ctx, code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, true, err
		}
		return nil, false, nil
	}

	switch result.Status {
	case backend.StatusAuthorized:
		if sess := result.Session(); sess != nil {
			return sess, true, nil
		}
	case backend.StatusExpired:
		return nil, true, autherr.WithDetail(deviceflow.ErrExpiredCode, result.Message)
	case backend.StatusError:
		return nil, true, autherr.WithDetail(deviceflow.ErrAuthorizationFailed, result.Message)
	}
	return nil, false, nil
}
