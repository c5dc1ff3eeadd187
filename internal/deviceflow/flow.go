// Package deviceflow drives the device authorization exchange against the backend
package deviceflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/backend"
	"github.com/wrale/authsession/internal/logging"
	"github.com/wrale/authsession/internal/session"
	"github.com/wrale/authsession/internal/validation"
)

// MinPollInterval is the default floor for schedule intervals
const MinPollInterval = 100 * time.Millisecond

// Backend is the subset of the backend API the device flow needs
type Backend interface {
	StartDeviceAuth(ctx context.Context) (*backend.DeviceAuthorization, error)
	PollDevice(ctx context.Context, code string) (*backend.PollResult, error)
}

// Flow mints device codes and polls them to resolution
type Flow struct {
	backend     Backend
	log         zerolog.Logger
	minInterval time.Duration
}

// NewFlow creates a device flow over b
func NewFlow(b Backend, opts ...Option) *Flow {
	f := &Flow{
		backend:     b,
		log:         zerolog.Nop(),
		minInterval: MinPollInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start mints a new device code
func (f *Flow) Start(ctx context.Context) (*Authorization, error) {
	auth, err := f.backend.StartDeviceAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateDeviceCode(auth.Code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeviceCode, err)
	}

	f.log.Debug().
		Str("code", logging.Code(auth.Code)).
		Time("expires_at", auth.ExpiresAt.Time).
		Msg("device code minted")

	return &Authorization{Code: auth.Code, ExpiresAt: auth.ExpiresAt.Time}, nil
}

// Poll checks code once
func (f *Flow) Poll(ctx context.Context, code string) (*backend.PollResult, error) {
	return f.backend.PollDevice(ctx, code)
}

// Run polls code on sched until the backend reports a terminal status, the
// schedule is exhausted or ctx is done. onEvent, if set, sees every poll
// outcome. A session is returned at most once and no poll follows it.
func (f *Flow) Run(ctx context.Context, code string, sched Schedule, onEvent func(Event)) (*session.Session, error) {
	emit := func(e Event) {
		if onEvent != nil {
			onEvent(e)
		}
	}
	if sched.Interval < f.minInterval {
		sched.Interval = f.minInterval
	}

	log := f.log.With().Str("code", logging.Code(code)).Logger()

	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()

	for attempt := 1; !sched.exhausted(attempt); attempt++ {
		if attempt > 1 || !sched.Immediate {
			select {
			case <-ctx.Done():
				return nil, canceled(ctx)
			case <-ticker.C:
			}
		}

		result, err := f.Poll(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceled(ctx)
			}
			log.Debug().Err(err).Int("attempt", attempt).Msg("poll failed, retrying")
			emit(Event{Kind: EventTransient, Attempt: attempt, Err: err})
			continue
		}

		switch result.Status {
		case backend.StatusAuthorized:
			if sess := result.Session(); sess != nil {
				log.Debug().Int("attempt", attempt).Msg("device code authorized")
				emit(Event{Kind: EventAuthorized, Attempt: attempt, Message: result.Message})
				return sess, nil
			}
			log.Warn().Int("attempt", attempt).Msg("authorized reply without session, treating as pending")
			emit(Event{Kind: EventPending, Attempt: attempt, Message: result.Message})
		case backend.StatusExpired:
			emit(Event{Kind: EventExpired, Attempt: attempt, Message: result.Message})
			return nil, autherr.WithDetail(ErrExpiredCode, result.Message)
		case backend.StatusError:
			emit(Event{Kind: EventError, Attempt: attempt, Message: result.Message})
			return nil, autherr.WithDetail(ErrAuthorizationFailed, result.Message)
		default:
			emit(Event{Kind: EventPending, Attempt: attempt, Message: result.Message})
		}
	}

	log.Debug().Int("attempts", sched.MaxAttempts).Msg("poll budget exhausted")
	return nil, ErrPollExhausted
}

// canceled reports why ctx ended. A deadline counts as a timeout.
func canceled(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", autherr.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", autherr.ErrCanceled, err)
}
