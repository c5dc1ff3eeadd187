package popup

import (
	"context"
)

// SuccessMessage is the message type the provider callback page posts on success
const SuccessMessage = "google_auth_success"

// Message is a message posted by the authorization window
type Message struct {
	Type string `json:"type"`
}

// Window is an open authorization window
type Window interface {
	// Messages delivers messages posted by the window
	Messages() <-chan Message
	// Closed reports whether the user closed the window
	Closed() bool
	// Close closes the window if it is still open and detaches its message listener
	Close() error
}

// Opener opens authorization windows
type Opener interface {
	Open(ctx context.Context, url string) (Window, error)
}
