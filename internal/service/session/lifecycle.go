package session

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

// State is the recognizer connection state of a session.
type State string

const (
	// StateConnecting - audio source opened, recognizer dial in progress.
	StateConnecting State = "connecting"
	// StateOpen - start directive sent, audio is streaming.
	StateOpen State = "open"
	// StateClosing - stop requested or remote closed; winding down.
	StateClosing State = "closing"
	// StateClosed - socket closed, transcript flushed. Terminal.
	StateClosed State = "closed"
)

const (
	eventOpened = "opened"
	eventStop   = "stop"
	eventClosed = "closed"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("session: invalid state transition")

// Lifecycle is the connection state machine for one session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CONNECTING → OPEN → CLOSING → CLOSED
//	     │         │
//	     └─────────┴── stop / closed
//
// A failed dial goes straight from CONNECTING to CLOSED.
type Lifecycle struct {
	fsm    *fsm.FSM
	logger zerolog.Logger
}

// NewLifecycle creates a lifecycle in CONNECTING state.
func NewLifecycle(logger zerolog.Logger) *Lifecycle {
	l := &Lifecycle{logger: logger}
	l.fsm = fsm.NewFSM(
		string(StateConnecting),
		fsm.Events{
			{Name: eventOpened, Src: []string{string(StateConnecting)}, Dst: string(StateOpen)},
			{Name: eventStop, Src: []string{string(StateConnecting), string(StateOpen)}, Dst: string(StateClosing)},
			{Name: eventClosed, Src: []string{string(StateConnecting), string(StateOpen), string(StateClosing)}, Dst: string(StateClosed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.logger.Debug().
					Str("event", e.Event).
					Str("from", e.Src).
					Str("to", e.Dst).
					Msg("Session state changed")
			},
		},
	)
	return l
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.fsm.Current())
}

// IsActive reports whether the session still accepts audio.
func (l *Lifecycle) IsActive() bool {
	return l.fsm.Is(string(StateConnecting)) || l.fsm.Is(string(StateOpen))
}

// Opened records that the start directive was sent.
func (l *Lifecycle) Opened() error {
	return l.fire(eventOpened)
}

// Stop moves an active session to CLOSING. It reports whether this call
// made the transition; later calls are no-ops.
func (l *Lifecycle) Stop() bool {
	return l.fire(eventStop) == nil
}

// Closed moves the session to the terminal CLOSED state.
func (l *Lifecycle) Closed() error {
	return l.fire(eventClosed)
}

func (l *Lifecycle) fire(event string) error {
	err := l.fsm.Event(context.Background(), event)
	if err == nil {
		return nil
	}
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return ErrInvalidTransition
	}
	return err
}
