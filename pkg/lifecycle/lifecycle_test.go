package lifecycle

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEmitter) OnStateChange(previous, current State, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, previous.String()+"->"+current.String())
}

func (e *recordingEmitter) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	copy(out, e.events)
	return out
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateCrashed, "crashed"},
		{State(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestTransitionTo(t *testing.T) {
	cases := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"stopped to starting", StateStopped, StateStarting, false},
		{"stopped to running", StateStopped, StateRunning, true},
		{"stopped to stopping", StateStopped, StateStopping, true},
		{"starting to running", StateStarting, StateRunning, false},
		{"starting to crashed", StateStarting, StateCrashed, false},
		{"starting to stopped", StateStarting, StateStopped, true},
		{"running to stopping", StateRunning, StateStopping, false},
		{"running to crashed", StateRunning, StateCrashed, false},
		{"running to starting", StateRunning, StateStarting, true},
		{"stopping to stopped", StateStopping, StateStopped, false},
		{"stopping to crashed", StateStopping, StateCrashed, false},
		{"stopping to running", StateStopping, StateRunning, true},
		{"crashed to starting", StateCrashed, StateStarting, false},
		{"crashed to stopped", StateCrashed, StateStopped, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(nil, nil)
			m.state = tc.from

			err := m.TransitionTo(tc.to, "test")
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("TransitionTo(%v) error = %v, want ErrInvalidTransition", tc.to, err)
				}
				if m.State() != tc.from {
					t.Errorf("state changed on invalid transition: %v", m.State())
				}
				return
			}
			if err != nil {
				t.Fatalf("TransitionTo(%v) error = %v", tc.to, err)
			}
			if m.State() != tc.to {
				t.Errorf("State() = %v, want %v", m.State(), tc.to)
			}
		})
	}
}

func TestTransitionEmitsEvents(t *testing.T) {
	emitter := &recordingEmitter{}
	m := NewManager(nil, emitter)

	if err := m.TransitionTo(StateStarting, "start requested"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}
	if err := m.TransitionTo(StateRunning, "workers up"); err != nil {
		t.Fatalf("TransitionTo: %v", err)
	}

	got := emitter.all()
	want := []string{"stopped->starting", "starting->running"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCanStartCanStop(t *testing.T) {
	cases := []struct {
		state    State
		canStart bool
		canStop  bool
	}{
		{StateStopped, true, false},
		{StateStarting, false, true},
		{StateRunning, false, true},
		{StateStopping, false, false},
		{StateCrashed, true, false},
	}
	for _, tc := range cases {
		m := NewManager(nil, nil)
		m.state = tc.state
		if got := m.CanStart(); got != tc.canStart {
			t.Errorf("CanStart() in %v = %v, want %v", tc.state, got, tc.canStart)
		}
		if got := m.CanStop(); got != tc.canStop {
			t.Errorf("CanStop() in %v = %v, want %v", tc.state, got, tc.canStop)
		}
	}
}

func TestWaitWithTimeout(t *testing.T) {
	m := NewManager(nil, nil)

	m.AddWorker()
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.WorkerDone()
	}()

	if err := m.WaitWithTimeout(time.Second); err != nil {
		t.Fatalf("WaitWithTimeout: %v", err)
	}
}

func TestWaitWithTimeoutExpires(t *testing.T) {
	m := NewManager(nil, nil)

	m.AddWorker()
	defer m.WorkerDone()

	err := m.WaitWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("WaitWithTimeout error = %v, want ErrShutdownTimeout", err)
	}
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 400*time.Millisecond)

	if b.Current() != 100*time.Millisecond {
		t.Fatalf("Current() = %v, want 100ms", b.Current())
	}

	b.Sleep()
	if b.Current() != 200*time.Millisecond {
		t.Errorf("after one sleep Current() = %v, want 200ms", b.Current())
	}

	b.Sleep()
	b.Sleep()
	if b.Current() != 400*time.Millisecond {
		t.Errorf("Current() = %v, want cap 400ms", b.Current())
	}

	b.Reset()
	if b.Current() != 100*time.Millisecond {
		t.Errorf("after Reset Current() = %v, want 100ms", b.Current())
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(0, 0)
	if b.Current() != 500*time.Millisecond {
		t.Errorf("default initial = %v, want 500ms", b.Current())
	}
	if b.max != 10*time.Second {
		t.Errorf("default max = %v, want 10s", b.max)
	}
}
