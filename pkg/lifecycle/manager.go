package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/spoolworks/crashship/pkg/log"
)

// DefaultManager is the standard Manager implementation.
type DefaultManager struct {
	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	workers sync.WaitGroup
	logger  log.Logger
	emitter EventEmitter
}

// NewManager creates a manager in the stopped state. The emitter may be
// nil if no state change notifications are needed.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DefaultManager{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current lifecycle state.
func (m *DefaultManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TransitionTo attempts to move to the given state.
func (m *DefaultManager) TransitionTo(state State, reason string) error {
	m.mu.Lock()
	previous := m.state

	valid := false
	switch previous {
	case StateStopped:
		valid = state == StateStarting
	case StateStarting:
		valid = state == StateRunning || state == StateCrashed
	case StateRunning:
		valid = state == StateStopping || state == StateCrashed
	case StateStopping:
		valid = state == StateStopped || state == StateCrashed
	case StateCrashed:
		valid = state == StateStarting
	}

	if !valid {
		m.mu.Unlock()
		return ErrInvalidTransition
	}

	m.state = state
	m.mu.Unlock()

	m.logger.Info("state transition",
		log.String("from", previous.String()),
		log.String("to", state.String()),
		log.String("reason", reason),
	)

	// Emit outside the lock so a slow handler cannot block State().
	if m.emitter != nil {
		m.emitter.OnStateChange(previous, state, reason)
	}
	return nil
}

// CanStart reports whether the agent may be started.
func (m *DefaultManager) CanStart() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateStopped || m.state == StateCrashed
}

// CanStop reports whether the agent may be stopped.
func (m *DefaultManager) CanStop() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateRunning || m.state == StateStarting
}

// SetCancel stores the cancel function for the agent's run context.
func (m *DefaultManager) SetCancel(cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel = cancel
}

// Cancel invokes the stored cancel function, if any.
func (m *DefaultManager) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// AddWorker registers a worker goroutine.
func (m *DefaultManager) AddWorker() {
	m.workers.Add(1)
}

// WorkerDone marks a worker goroutine as finished.
func (m *DefaultManager) WorkerDone() {
	m.workers.Done()
}

// WaitWithTimeout blocks until all workers finish or the timeout elapses.
func (m *DefaultManager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
