// Package validation checks device codes and login input before they reach the backend
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// Validation settings
const (
	MaxCodeLength     = 256 // Upper bound for a backend-minted device code
	MaxUsernameLength = 150
	MinPasswordLength = 1
)

// Roles accepted by the backend
const (
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// codeRegex matches URL-safe opaque codes
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9_\-.~]+$`)

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateDeviceCode checks that a device code is safe to echo back in a query string
func ValidateDeviceCode(code string) error {
	if code == "" {
		return &ValidationError{Field: "device code", Message: "must not be empty"}
	}
	if len(code) > MaxCodeLength {
		return &ValidationError{Field: "device code", Message: fmt.Sprintf("longer than %d characters", MaxCodeLength)}
	}
	if !codeRegex.MatchString(code) {
		return &ValidationError{Field: "device code", Message: "contains characters outside the URL-safe set"}
	}
	return nil
}

// NormalizeUsername trims surrounding whitespace
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateCredentials checks a username/password pair. username must already be normalized.
func ValidateCredentials(username, password string) error {
	if username == "" {
		return &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if len(username) > MaxUsernameLength {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("longer than %d characters", MaxUsernameLength)}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "must not be empty"}
	}
	return nil
}

// ValidateEmail checks that email is a bare address
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "must not be empty"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "must be a plain address such as user@example.com"}
	}
	return nil
}

// NormalizeRole returns the role to send, defaulting to editor
func NormalizeRole(role string) (string, error) {
	switch role = strings.ToLower(strings.TrimSpace(role)); role {
	case "":
		return RoleEditor, nil
	case RoleEditor, RoleAdmin:
		return role, nil
	}
	return "", &ValidationError{Field: "role", Message: fmt.Sprintf("%q is not one of %s, %s", role, RoleEditor, RoleAdmin)}
}
