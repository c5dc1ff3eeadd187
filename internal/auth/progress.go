package auth

import (
	"sync"

	"github.com/wrale/authsession/internal/session"
)

// Progress is a snapshot of a background login
type Progress struct {
	State   string
	Message string
	// AuthURL is the provider page, for provider logins once the window is opened
	AuthURL string
	Done    bool
	// Err is the failure of a finished login
	Err error
}

// tracker records the progress and result of a background login
type tracker struct {
	done chan struct{}

	mu      sync.Mutex
	state   string
	message string
	authURL string
	sess    *session.Session
	err     error
}

func newTracker(state string) *tracker {
	return &tracker{done: make(chan struct{}), state: state}
}

func (t *tracker) set(state, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state, t.message = state, message
}

func (t *tracker) finish(state string, sess *session.Session, err error) {
	t.mu.Lock()
	t.state, t.sess, t.err = state, sess, err
	t.mu.Unlock()
	close(t.done)
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Progress{State: t.state, Message: t.message, AuthURL: t.authURL, Err: t.err}
	select {
	case <-t.done:
		p.Done = true
	default:
	}
	return p
}

// Done is closed when the login finishes
func (t *tracker) Done() <-chan struct{} {
	return t.done
}

// Result returns the outcome once Done is closed
func (t *tracker) Result() (*session.Session, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess, t.err
}

// abandon cancels a if it is still the current attempt
func (m *Manager) abandon(a *attempt) {
	m.mu.Lock()
	if m.current == a {
		m.current = nil
	}
	m.mu.Unlock()
	a.cancel()
}
