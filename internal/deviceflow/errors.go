package deviceflow

import (
	"errors"

	"github.com/wrale/authsession/internal/autherr"
)

// Errors that may end a device authorization
var (
	// ErrInvalidDeviceCode indicates the backend minted a code we cannot carry
	ErrInvalidDeviceCode = errors.New("invalid device code")

	// ErrExpiredCode indicates the backend declared the device code expired
	ErrExpiredCode = autherr.New(autherr.ErrExpired, "device code expired")

	// ErrAuthorizationFailed indicates the backend reported an error status for the code
	ErrAuthorizationFailed = autherr.New(autherr.ErrProviderError, "device authorization failed")

	// ErrPollExhausted indicates the schedule ran out of attempts before a terminal status
	ErrPollExhausted = autherr.New(autherr.ErrTimeout, "poll attempts exhausted")
)
