// Package autherr defines the error kinds shared by every login path
package autherr

import (
	"context"
	"errors"
)

// Error kinds. Component errors wrap one of these so callers can branch with errors.Is.
var (
	// ErrNetwork indicates the backend could not be reached
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates a request or retry budget was exceeded
	ErrTimeout = errors.New("timeout")

	// ErrInvalidCredentials indicates the backend rejected the supplied credentials
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpired indicates the backend declared the code or session expired
	ErrExpired = errors.New("expired")

	// ErrPopupBlocked indicates the authorization window could not be opened
	ErrPopupBlocked = errors.New("popup blocked")

	// ErrProviderError indicates the identity provider reported a failure
	ErrProviderError = errors.New("provider error")

	// ErrCanceled indicates the caller abandoned the attempt
	ErrCanceled = errors.New("canceled")
)

// Error codes reported to the UI
const (
	CodeNetwork            = "network_error"
	CodeTimeout            = "timeout"
	CodeInvalidCredentials = "invalid_credentials"
	CodeExpired            = "expired"
	CodePopupBlocked       = "popup_blocked"
	CodeProviderError      = "provider_error"
	CodeCanceled           = "canceled"
	CodeInvalidRequest     = "invalid_request"
	CodeServerError        = "server_error"
)

// Kind returns the kind sentinel err wraps, or nil if it wraps none.
// Context errors map to ErrTimeout and ErrCanceled.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidCredentials,
		ErrPopupBlocked,
		ErrProviderError,
		ErrExpired,
		ErrTimeout,
		ErrNetwork,
		ErrCanceled,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	}
	return nil
}

// Describe returns a machine code and a human-readable message for err.
// The message tells the user what to do next. A non-empty detail from the
// backend replaces the generic credential and provider messages.
func Describe(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	detail := Detail(err)
	switch Kind(err) {
	case ErrNetwork:
		return CodeNetwork, "Cannot reach the server. Check your network connection and that the server is running."
	case ErrTimeout:
		return CodeTimeout, "The server took too long to respond. Please try again."
	case ErrInvalidCredentials:
		if detail != "" {
			return CodeInvalidCredentials, detail
		}
		return CodeInvalidCredentials, "Incorrect username or password. Please re-enter your credentials."
	case ErrExpired:
		return CodeExpired, "The login request expired. Please start a new login."
	case ErrPopupBlocked:
		return CodePopupBlocked, "The login window could not be opened. Allow popups for this site and try again."
	case ErrProviderError:
		if detail != "" {
			return CodeProviderError, detail
		}
		return CodeProviderError, "The identity provider reported an error. Please try again."
	case ErrCanceled:
		return CodeCanceled, "The login was canceled."
	}
	return CodeServerError, err.Error()
}

// detailer is implemented by errors that carry a backend-provided description
type detailer interface {
	BackendDetail() string
}

// Detail returns the first backend-provided description in err's chain
func Detail(err error) string {
	var d detailer
	if errors.As(err, &d) {
		return d.BackendDetail()
	}
	return ""
}

// New returns an error with message msg that wraps kind
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// WithDetail wraps kind with a backend description that Describe surfaces verbatim
func WithDetail(kind error, detail string) error {
	return &detailError{kind: kind, detail: detail}
}

type detailError struct {
	kind   error
	detail string
}

func (e *detailError) Error() string {
	if e.detail == "" {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.detail
}

func (e *detailError) Unwrap() error { return e.kind }

func (e *detailError) BackendDetail() string { return e.detail }
