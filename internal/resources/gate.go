// Package resources gates report sending on host load. Crash uploads are
// never urgent; when the machine is busy the agent waits, and the hard
// interval in the app layer guarantees the wait is bounded.
package resources

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/spoolworks/crashship/internal/ports"
)

// DefaultCPUThreshold is the utilization fraction above which sends wait.
const DefaultCPUThreshold = 0.85

// Sampler returns the current CPU utilization as a fraction in [0, 1].
type Sampler func() (float64, error)

// CPUGate implements ports.ResourceGate over a CPU utilization sampler.
type CPUGate struct {
	threshold float64
	sample    Sampler
	logger    ports.Logger

	mu         sync.Mutex
	lastSample time.Time
	lastValue  float64
}

// NewCPUGate creates a gate with the given threshold. A zero threshold
// selects the default; a nil sampler selects the gopsutil sampler.
func NewCPUGate(threshold float64, sample Sampler, logger ports.Logger) *CPUGate {
	if threshold <= 0 {
		threshold = DefaultCPUThreshold
	}
	if sample == nil {
		sample = gopsutilSample
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &CPUGate{threshold: threshold, sample: sample, logger: logger}
}

// OK reports whether the host is idle enough to send. Sampling failures
// count as idle so a broken stats source never wedges the agent.
func (g *CPUGate) OK() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	// gopsutil's non-blocking mode measures since the previous call, so
	// throttle to one sample per second to keep readings meaningful.
	if time.Since(g.lastSample) >= time.Second {
		v, err := g.sample()
		if err != nil {
			g.logger.Debug("cpu sample failed", ports.Err(err))
			g.lastValue = 0
		} else {
			g.lastValue = v
		}
		g.lastSample = time.Now()
	}

	if g.lastValue > g.threshold {
		g.logger.Debug("send gated on cpu",
			ports.Float64("utilization", g.lastValue),
			ports.Float64("threshold", g.threshold))
		return false
	}
	return true
}

// gopsutilSample reads system-wide CPU utilization without blocking.
func gopsutilSample() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0] / 100, nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...ports.Field) {}
func (noopLogger) Info(string, ...ports.Field)  {}
func (noopLogger) Warn(string, ...ports.Field)  {}
func (noopLogger) Error(string, ...ports.Field) {}
