package crashship

import "time"

// EventHandler receives notifications about agent activity. Handlers are
// invoked synchronously from agent goroutines and must return quickly;
// anything slow belongs on the handler's own goroutine.
type EventHandler interface {
	// OnStateChange is called whenever the agent transitions between
	// lifecycle states.
	OnStateChange(event StateChangeEvent)

	// OnSendSuccess is called after a report set has been delivered and
	// removed from the spool.
	OnSendSuccess(event SendSuccessEvent)

	// OnSendError is called when a delivery attempt fails.
	OnSendError(event SendErrorEvent)
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	// Previous is the state before the transition.
	Previous State

	// Current is the state after the transition.
	Current State

	// Reason describes why the transition happened, when known.
	Reason string
}

// SendSuccessEvent describes a successful report delivery.
type SendSuccessEvent struct {
	// ReportCount is the number of report sets delivered.
	ReportCount int

	// BytesSent is the payload size delivered, in bytes.
	BytesSent int

	// Duration is how long the delivery took.
	Duration time.Duration
}

// SendErrorEvent describes a failed delivery attempt.
type SendErrorEvent struct {
	// Error is the failure cause.
	Error error

	// ReportCount is the number of report sets in the failed attempt.
	ReportCount int

	// Retryable indicates whether the agent will retry the delivery.
	Retryable bool
}

// BaseEventHandler provides no-op implementations of all EventHandler
// methods. Embed it to handle only the events you care about.
type BaseEventHandler struct{}

// OnStateChange does nothing.
func (BaseEventHandler) OnStateChange(event StateChangeEvent) {}

// OnSendSuccess does nothing.
func (BaseEventHandler) OnSendSuccess(event SendSuccessEvent) {}

// OnSendError does nothing.
func (BaseEventHandler) OnSendError(event SendErrorEvent) {}
