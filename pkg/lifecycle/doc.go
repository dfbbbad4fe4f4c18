// Package lifecycle provides state machine management for long-running
// agent processes.
//
// The lifecycle package implements a simple state machine that tracks
// whether an agent is stopped, starting, running, stopping, or crashed.
// Transitions are validated so that callers cannot move an agent from
// one state to an incompatible one, for example stopping an agent that
// never started.
//
// [Manager] is the interface consumed by agent implementations.
// [DefaultManager] is the concrete implementation used by the crashship
// agent; it also tracks worker goroutines so that shutdown can wait for
// in-flight work to drain with a bounded timeout.
//
// [Backoff] implements jittered exponential backoff for retry loops,
// typically wrapped around report delivery attempts.
package lifecycle
