package common

import (
	"github.com/wrale/authsession/internal/auth"
)

// ProgressResponse reports a background login
type ProgressResponse struct {
	State            string `json:"state"`
	Message          string `json:"message,omitempty"`
	Done             bool   `json:"done"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewProgressResponse converts p, describing its error if the login failed
func NewProgressResponse(p auth.Progress) ProgressResponse {
	resp := ProgressResponse{State: p.State, Message: p.Message, Done: p.Done}
	if p.Err != nil {
		resp.Error, _, resp.ErrorDescription = Classify(p.Err)
	}
	return resp
}
