package auth

import (
	"errors"

	"github.com/wrale/authsession/internal/autherr"
)

var (
	// ErrSuperseded indicates a newer attempt, a logout, or a cancel replaced this attempt
	ErrSuperseded = autherr.New(autherr.ErrCanceled, "login attempt superseded")

	// ErrNotLoggedIn indicates no session is held
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNoAttempt indicates no login of the requested kind has been started
	ErrNoAttempt = errors.New("no login in progress")
)
