// Package health reports the health of the agent's storage components
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Checker is a component that can verify its own health
type Checker interface {
	CheckHealth(ctx context.Context) error
}

type component struct {
	name    string
	checker Checker
}

// Handler processes health check requests
type Handler struct {
	components []component
	version    string
}

// Response represents the health check response
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a health handler with no components
func New() *Handler {
	return &Handler{version: "unknown"}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// WithComponent adds a component reported under name
func (h *Handler) WithComponent(name string, c Checker) *Handler {
	h.components = append(h.components, component{name: name, checker: c})
	return h
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}

	for _, c := range h.components {
		if err := c.checker.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details[c.name] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
			continue
		}
		response.Details[c.name] = map[string]any{"status": "healthy"}
	}

	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"server_error","error_description":"Error encoding response"}`,
			http.StatusInternalServerError)
		return
	}
}
