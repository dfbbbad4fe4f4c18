package crashship

// State represents the lifecycle state of a Crashship instance.
type State int

const (
	// StateStopped indicates the agent is not running.
	StateStopped State = iota

	// StateStarting indicates the agent is in the process of starting.
	StateStarting

	// StateRunning indicates the agent is sweeping and shipping reports.
	StateRunning

	// StateStopping indicates the agent is in the process of stopping.
	StateStopping

	// StateCrashed indicates the agent encountered a fatal error.
	StateCrashed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// CanStart reports whether Start may be called from this state.
func (s State) CanStart() bool {
	return s == StateStopped || s == StateCrashed
}

// CanStop reports whether Stop may be called from this state.
func (s State) CanStop() bool {
	return s == StateRunning || s == StateStarting
}

// IsRunning reports whether the agent is actively processing reports.
func (s State) IsRunning() bool {
	return s == StateRunning
}
