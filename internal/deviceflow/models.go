package deviceflow

import (
	"time"
)

// State is the lifecycle position of a device authorization
type State int

// Device authorization states
const (
	StateIdle State = iota
	StateRequested
	StatePolling
	StateAuthorized
	StateExpired
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StatePolling:
		return "polling"
	case StateAuthorized:
		return "authorized"
	case StateExpired:
		return "expired"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether no further polls follow s
func (s State) Terminal() bool {
	return s == StateAuthorized || s == StateExpired || s == StateError
}

// Authorization is a freshly minted device code
type Authorization struct {
	Code      string
	ExpiresAt time.Time
}

// EventKind classifies a poll loop event
type EventKind string

// Poll loop events
const (
	EventPending    EventKind = "pending"
	EventTransient  EventKind = "transient"
	EventAuthorized EventKind = "authorized"
	EventExpired    EventKind = "expired"
	EventError      EventKind = "error"
)

// Event reports the outcome of one poll
type Event struct {
	Kind    EventKind
	Attempt int
	// Message is the backend's progress text, if any
	Message string
	// Err is set for transient events
	Err error
}

// State returns the device authorization state after e
func (e Event) State() State {
	switch e.Kind {
	case EventAuthorized:
		return StateAuthorized
	case EventExpired:
		return StateExpired
	case EventError:
		return StateError
	}
	return StatePolling
}

// Schedule controls how often and how many times a code is polled
type Schedule struct {
	// Interval is the spacing between polls
	Interval time.Duration
	// MaxAttempts bounds the number of polls; zero polls until a terminal status
	MaxAttempts int
	// Immediate polls once before the first interval elapses
	Immediate bool
}

// DefaultSchedule polls right away and then every second until a terminal status
var DefaultSchedule = Schedule{Interval: time.Second, Immediate: true}

// exhausted reports whether attempt exceeds the budget
func (s Schedule) exhausted(attempt int) bool {
	return s.MaxAttempts > 0 && attempt > s.MaxAttempts
}
