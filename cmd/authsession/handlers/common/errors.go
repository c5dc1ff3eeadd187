// Package common holds the JSON helpers shared by the agent handlers
package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/wrale/authsession/internal/auth"
	"github.com/wrale/authsession/internal/autherr"
	"github.com/wrale/authsession/internal/validation"
)

// maxBodySize bounds request bodies
const maxBodySize = 64 << 10

// ErrorResponse is the error body of every agent endpoint
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets the headers of every JSON response
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON writes v with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		WriteJSONError(w, err)
	}
}

// WriteError sends an error response
func WriteError(w http.ResponseWriter, status int, code, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// WriteAuthError sends err using its kind to pick the status and code
func WriteAuthError(w http.ResponseWriter, err error) {
	code, status, description := Classify(err)
	WriteError(w, status, code, description)
}

// Classify maps err to an error code, HTTP status and description
func Classify(err error) (code string, status int, description string) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		return autherr.CodeInvalidRequest, http.StatusBadRequest, verr.Error()
	case errors.Is(err, auth.ErrNoAttempt):
		return autherr.CodeInvalidRequest, http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrSuperseded):
		_, description = autherr.Describe(err)
		return autherr.CodeCanceled, http.StatusConflict, description
	}

	code, description = autherr.Describe(err)
	switch code {
	case autherr.CodeInvalidCredentials:
		status = http.StatusUnauthorized
	case autherr.CodeExpired:
		status = http.StatusGone
	case autherr.CodeTimeout:
		status = http.StatusGatewayTimeout
	case autherr.CodeNetwork, autherr.CodeProviderError:
		status = http.StatusBadGateway
	case autherr.CodePopupBlocked:
		status = http.StatusUnprocessableEntity
	case autherr.CodeCanceled:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	return code, status, description
}

// WriteJSONError handles JSON encoding failures with a standardized response
func WriteJSONError(w http.ResponseWriter, err error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)

	errResponse := []byte(`{"error":"server_error","error_description":"Failed to encode response"}`)
	if _, writeErr := w.Write(errResponse); writeErr != nil {
		return
	}
}

// DecodeJSON reads a JSON request body into v. An empty body leaves v unchanged.
func DecodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &validation.ValidationError{Field: "body", Message: "must be a JSON object"}
	}
	return nil
}
