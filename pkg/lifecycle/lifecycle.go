package lifecycle

import (
	"context"
	"errors"
	"time"
)

// State represents the current lifecycle state of an agent.
type State int

const (
	// StateStopped indicates the agent is not running.
	StateStopped State = iota
	// StateStarting indicates the agent is in the process of starting.
	StateStarting
	// StateRunning indicates the agent is running normally.
	StateRunning
	// StateStopping indicates the agent is in the process of stopping.
	StateStopping
	// StateCrashed indicates the agent terminated abnormally.
	StateCrashed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition is returned when a state transition is not allowed.
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")
	// ErrAlreadyRunning is returned when starting an agent that is already running.
	ErrAlreadyRunning = errors.New("lifecycle: agent already running")
	// ErrNotRunning is returned when stopping an agent that is not running.
	ErrNotRunning = errors.New("lifecycle: agent not running")
	// ErrShutdownTimeout is returned when workers do not drain before the deadline.
	ErrShutdownTimeout = errors.New("lifecycle: shutdown timed out")
)

// ShutdownTimeout is the maximum time to wait for workers to finish
// during shutdown before giving up.
const ShutdownTimeout = 30 * time.Second

// EventEmitter receives lifecycle state change notifications.
// Implementations must not block; they are invoked synchronously from
// the transition path.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages lifecycle state and worker goroutines for an agent.
type Manager interface {
	// State returns the current lifecycle state.
	State() State

	// TransitionTo attempts to move to the given state, validating the
	// transition against the current state.
	TransitionTo(state State, reason string) error

	// CanStart reports whether the agent may be started from the
	// current state.
	CanStart() bool

	// CanStop reports whether the agent may be stopped from the
	// current state.
	CanStop() bool

	// SetCancel stores the cancel function for the agent's run context.
	SetCancel(cancel context.CancelFunc)

	// Cancel invokes the stored cancel function, if any.
	Cancel()

	// AddWorker registers a worker goroutine with the shutdown wait group.
	AddWorker()

	// WorkerDone marks a worker goroutine as finished.
	WorkerDone()

	// WaitWithTimeout blocks until all workers finish or the timeout
	// elapses, returning ErrShutdownTimeout in the latter case.
	WaitWithTimeout(timeout time.Duration) error
}
