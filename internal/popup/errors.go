package popup

import (
	"errors"

	"github.com/wrale/authsession/internal/autherr"
)

var (
	// ErrPopupTimeout indicates no resolution arrived before the hard deadline
	ErrPopupTimeout = autherr.New(autherr.ErrTimeout, "provider login timed out")

	// ErrUnknownWindow indicates an event for a window that is not open
	ErrUnknownWindow = errors.New("unknown window")
)
