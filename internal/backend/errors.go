package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HTTPError is returned for any non-2xx backend response so callers can
// branch on the status code
type HTTPError struct {
	StatusCode int
	Body       []byte
	Detail     string
}

func newHTTPError(status int, body []byte) *HTTPError {
	return &HTTPError{StatusCode: status, Body: body, Detail: parseDetail(body)}
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// BackendDetail returns the backend's description of the failure
func (e *HTTPError) BackendDetail() string {
	return e.Detail
}

// parseDetail extracts the {"detail": "..."} description the backend sends
// with error responses. Non-string details are ignored.
func parseDetail(body []byte) string {
	var resp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(resp.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
