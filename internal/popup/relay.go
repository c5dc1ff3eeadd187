package popup

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Launcher shows url to the user in a window identified by id
type Launcher func(ctx context.Context, id, url string) error

// BrowserLauncher opens url in the system browser
func BrowserLauncher(ctx context.Context, id, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("empty url")
	}
	args := browserCommand(runtime.GOOS, url)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// the opener exits once the browser has the url; reap it
	go func() { _ = cmd.Wait() }()
	return nil
}

// browserCommand returns the command line that opens url on goos. The url
// is passed as a single argument so query separators survive.
func browserCommand(goos, url string) []string {
	switch goos {
	case "darwin":
		return []string{"open", url}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}
	default:
		return []string{"xdg-open", url}
	}
}

// messageBuffer bounds undelivered window messages; extra messages are dropped
const messageBuffer = 8

// Relay opens windows through a Launcher and receives their events from an
// external channel, typically the agent's HTTP surface
type Relay struct {
	launch Launcher
	log    zerolog.Logger

	mu      sync.Mutex
	windows map[string]*relayWindow
}

// NewRelay creates a relay that shows windows with launch
func NewRelay(launch Launcher, log zerolog.Logger) *Relay {
	return &Relay{
		launch:  launch,
		log:     log,
		windows: make(map[string]*relayWindow),
	}
}

// Open registers a window for url and launches it
func (r *Relay) Open(ctx context.Context, url string) (Window, error) {
	w := &relayWindow{
		id:       uuid.NewString(),
		url:      url,
		relay:    r,
		messages: make(chan Message, messageBuffer),
	}

	r.mu.Lock()
	r.windows[w.id] = w
	r.mu.Unlock()

	if err := r.launch(ctx, w.id, url); err != nil {
		r.remove(w.id)
		return nil, err
	}
	r.log.Debug().Str("window", w.id).Msg("authorization window opened")
	return w, nil
}

// Deliver passes a message posted by window id
func (r *Relay) Deliver(id string, msg Message) error {
	w, ok := r.lookup(id)
	if !ok {
		return ErrUnknownWindow
	}
	w.deliver(msg)
	return nil
}

// MarkClosed records that the user closed window id
func (r *Relay) MarkClosed(id string) error {
	w, ok := r.lookup(id)
	if !ok {
		return ErrUnknownWindow
	}
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

// Current returns the id and url of an open window, if any
func (r *Relay) Current() (id, url string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.windows {
		return w.id, w.url, true
	}
	return "", "", false
}

func (r *Relay) lookup(id string) (*relayWindow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	return w, ok
}

func (r *Relay) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, id)
}

type relayWindow struct {
	id       string
	url      string
	relay    *Relay
	messages chan Message

	mu       sync.Mutex
	closed   bool
	detached bool
}

func (w *relayWindow) Messages() <-chan Message {
	return w.messages
}

func (w *relayWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close detaches the window. A browser tab cannot be closed from here; the
// UI learns of it through the relay no longer knowing the id.
func (w *relayWindow) Close() error {
	w.relay.remove(w.id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.detached = true
	return nil
}

func (w *relayWindow) deliver(msg Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.detached {
		return
	}
	select {
	case w.messages <- msg:
	default:
		w.relay.log.Warn().Str("window", w.id).Str("type", msg.Type).Msg("window message dropped")
	}
}

// DetachedOpener launches windows it cannot observe. Each window reads as
// closed at once, so the code is resolved by polling.
func DetachedOpener(launch Launcher) Opener {
	return detachedOpener{launch: launch}
}

type detachedOpener struct {
	launch Launcher
}

func (o detachedOpener) Open(ctx context.Context, url string) (Window, error) {
	if err := o.launch(ctx, uuid.NewString(), url); err != nil {
		return nil, err
	}
	return detachedWindow{}, nil
}

type detachedWindow struct{}

func (detachedWindow) Messages() <-chan Message { return nil }
func (detachedWindow) Closed() bool             { return true }
func (detachedWindow) Close() error             { return nil }
