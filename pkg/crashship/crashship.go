package crashship

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/spoolworks/crashship/internal/adapters/fs"
	adapterhttp "github.com/spoolworks/crashship/internal/adapters/http"
	adapterlog "github.com/spoolworks/crashship/internal/adapters/log"
	"github.com/spoolworks/crashship/internal/adapters/sqlite"
	"github.com/spoolworks/crashship/internal/app"
	"github.com/spoolworks/crashship/internal/collector"
	"github.com/spoolworks/crashship/internal/consent"
	"github.com/spoolworks/crashship/internal/domain"
	"github.com/spoolworks/crashship/internal/ports"
	"github.com/spoolworks/crashship/internal/resources"
	"github.com/spoolworks/crashship/pkg/lifecycle"
	"github.com/spoolworks/crashship/pkg/log"
)

// rateWindow is the rolling window the per-day upload caps apply to.
const rateWindow = 24 * time.Hour

// Crashship is an embeddable crash reporting agent. It sweeps crash
// artifacts from a spool directory, seals them into report sets, and ships
// them to a collection service, honoring consent, rate limits, and host
// resource pressure.
//
// Create an instance with New, then call Start to begin processing and
// Stop to shut down. A stopped instance can be started again.
type Crashship struct {
	config  Config
	opts    options
	logger  ports.Logger
	manager lifecycle.Manager
	emitter *eventEmitterWrapper

	spool     *fs.Spool
	ledger    *sqlite.Ledger
	stateRepo *fs.StateFileRepository
	consent   *consent.Store
	gate      *resources.CPUGate
	cleanup   *app.CleanupRunner
	agent     *app.Agent

	plugins []Plugin

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Crashship instance with the given configuration. The spool
// layout and state database are created if missing; nothing runs until
// Start is called.
func New(config Config, opts ...Option) (*Crashship, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, fmt.Errorf("module version check: %w", err)
	}

	o := defaultOptions(&http.Client{Timeout: config.HTTPTimeout})
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}

	logger := adapterlog.NewBridge(o.logger)
	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	manager := lifecycle.NewManager(o.logger, emitter)

	spool := fs.NewSpool(config.SpoolDir, 0, 0)
	if err := spool.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare spool: %w", err)
	}
	ledger, err := sqlite.Open(config.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open upload ledger: %w", err)
	}
	stateRepo := fs.NewStateFileRepository(config.StateDir)
	consentStore := consent.NewStore(config.StateDir, config.RunStateDir)
	coll := collector.New(spool, consentStore, logger, collector.Options{
		RunStateDir: config.RunStateDir,
		Version:     Version,
	})
	sender := adapterhttp.NewReportSender(o.httpClient, logger)

	var gate *resources.CPUGate
	var gatePort ports.ResourceGate
	if o.resourceGatingConfig != nil {
		gate = resources.NewCPUGate(o.resourceGatingConfig.CPUThreshold, nil, logger)
		gatePort = gate
	}

	var cleanup *app.CleanupRunner
	if o.cleanupConfig != nil {
		cleanup = app.NewCleanupRunner(app.CleanupConfig{
			CheckInterval: o.cleanupConfig.CheckInterval,
			HighWatermark: o.cleanupConfig.HighWatermark,
			LowWatermark:  o.cleanupConfig.LowWatermark,
			PendingMaxAge: o.cleanupConfig.PendingMaxAge,
			LedgerMaxAge:  o.cleanupConfig.LedgerMaxAge,
		}, spool, spool, ledger, logger)
	}

	agentConfig := app.AgentConfig{
		PollInterval:    config.PollInterval,
		SendInterval:    config.SendInterval,
		HardInterval:    config.HardInterval,
		MaxReportBytes:  config.MaxReportBytes,
		MaxPerDay:       config.MaxPerDay,
		MaxBytesPerDay:  config.MaxBytesPerDay,
		RateWindow:      rateWindow,
		MaxHoldOff:      config.MaxHoldOff,
		Verify:          config.Verify,
		Once:            config.Once,
		IgnoreHoldOff:   config.IgnoreHoldOff,
		IgnorePauseFile: config.IgnorePauseFile,
		PendingDir:      spool.PendingDir(),
		RunStateDir:     config.RunStateDir,
		Hostname:        hostname(),
		OSArch:          runtime.GOOS + "/" + runtime.GOARCH,
		AuthKey:         config.AuthKey,
		ServiceURL:      config.ServiceURL,
	}
	agent := app.NewAgent(agentConfig, spool, coll, sender, ledger, stateRepo, consentStore, gatePort, logger, emitter)

	return &Crashship{
		config:    config,
		opts:      o,
		logger:    logger,
		manager:   manager,
		emitter:   emitter,
		spool:     spool,
		ledger:    ledger,
		stateRepo: stateRepo,
		consent:   consentStore,
		gate:      gate,
		cleanup:   cleanup,
		agent:     agent,
		plugins:   o.plugins,
	}, nil
}

// Start begins sweeping and shipping crash reports. It initializes plugins
// in registration order, then runs the agent loop on a background
// goroutine. The context governs startup only; use Stop to shut down.
func (c *Crashship) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.manager.CanStart() {
		return fmt.Errorf("%w: cannot start from state %s", domain.ErrAlreadyRunning, c.Status())
	}
	if err := c.manager.TransitionTo(lifecycle.StateStarting, "start requested"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.manager.SetCancel(cancel)

	pluginCfg := PluginConfig{
		SpoolDir:    c.config.SpoolDir,
		StateDir:    c.config.StateDir,
		RunStateDir: c.config.RunStateDir,
		ServiceURL:  c.config.ServiceURL,
		AuthKey:     c.config.AuthKey,
		Logger:      c.opts.logger,
	}
	// Plugins run against the agent lifetime, not the startup context. The
	// AfterFunc link lets a canceled startup still interrupt a blocking
	// Initialize; it is detached once every plugin is up.
	detach := context.AfterFunc(ctx, cancel)
	for _, p := range c.plugins {
		select {
		case <-ctx.Done():
			detach()
			cancel()
			c.manager.TransitionTo(lifecycle.StateCrashed, "startup canceled")
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), ctx.Err())
		default:
		}
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			detach()
			cancel()
			c.manager.TransitionTo(lifecycle.StateCrashed, "plugin initialization failed")
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), err)
		}
		c.logger.Debug("plugin initialized", ports.String("plugin", p.Name()))
	}
	detach()

	if c.cleanup != nil {
		c.logger.Info("spool cleanup enabled")
		c.cleanup.Start(runCtx)
	}
	if c.gate != nil {
		c.logger.Info("resource gating enabled")
	}

	done := make(chan struct{})
	c.done = done

	c.manager.AddWorker()
	go func() {
		defer c.manager.WorkerDone()
		defer close(done)

		if err := c.manager.TransitionTo(lifecycle.StateRunning, "startup complete"); err != nil {
			c.logger.Error("transition to running failed", ports.Err(err))
			return
		}
		if err := c.agent.Run(runCtx); err != nil && err != context.Canceled {
			c.logger.Error("agent stopped with error", ports.Err(err))
			c.manager.TransitionTo(lifecycle.StateCrashed, err.Error())
		}
	}()

	return nil
}

// Stop shuts the agent down. It cancels the run context, waits for workers
// to drain, and shuts plugins down in reverse registration order. Stop
// returns ErrShutdownTimeout if workers do not drain in time; the instance
// is marked crashed in that case.
func (c *Crashship) Stop() error {
	c.mu.Lock()
	if !c.manager.CanStop() {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot stop from state %s", domain.ErrNotRunning, c.Status())
	}
	if err := c.manager.TransitionTo(lifecycle.StateStopping, "stop requested"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	waitErr := c.manager.WaitWithTimeout(lifecycle.ShutdownTimeout)

	if c.cleanup != nil {
		c.cleanup.Stop()
	}

	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if err := p.Shutdown(context.Background()); err != nil {
			c.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()), ports.Err(err))
		}
	}

	if waitErr != nil {
		c.manager.TransitionTo(lifecycle.StateCrashed, "shutdown timeout")
		return fmt.Errorf("stop: %w", waitErr)
	}
	return c.manager.TransitionTo(lifecycle.StateStopped, "stop complete")
}

// Status returns the current lifecycle state.
func (c *Crashship) Status() State {
	return convertState(c.manager.State())
}

// Done returns a channel closed when the run loop from the most recent
// Start exits. With Once set this signals that the single pass finished;
// the instance stays Running until Stop is called. Before the first Start
// the returned channel is already closed.
func (c *Crashship) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// Close releases resources held by the instance, including the upload
// ledger database. Call it after Stop when the instance is no longer
// needed; a closed instance cannot be started again.
func (c *Crashship) Close() error {
	return c.ledger.Close()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

// eventEmitterWrapper adapts the public EventHandler to the emitter
// interfaces the lifecycle manager and the agent expect.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current lifecycle.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnSendSuccess(reportCount, bytesSent int, duration time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendSuccess(SendSuccessEvent{
		ReportCount: reportCount,
		BytesSent:   bytesSent,
		Duration:    duration,
	})
}

func (e *eventEmitterWrapper) OnSendError(err error, reportCount int, retryable bool) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendError(SendErrorEvent{
		Error:       err,
		ReportCount: reportCount,
		Retryable:   retryable,
	})
}

func convertState(s lifecycle.State) State {
	switch s {
	case lifecycle.StateStopped:
		return StateStopped
	case lifecycle.StateStarting:
		return StateStarting
	case lifecycle.StateRunning:
		return StateRunning
	case lifecycle.StateStopping:
		return StateStopping
	case lifecycle.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// validateModuleVersions checks that all sub-modules satisfy the
// compatibility matrix.
func validateModuleVersions() error {
	versions := ModuleVersions()
	for name, minVersion := range CompatibilityMatrix() {
		current, ok := versions[name]
		if !ok {
			return fmt.Errorf("module %s missing from version table", name)
		}
		if !isVersionCompatible(current, minVersion) {
			return fmt.Errorf("module %s version %s is below minimum %s", name, current, minVersion)
		}
	}
	return nil
}

func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	if _, err := fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch); err != nil {
		return false
	}

	if vMajor != mMajor {
		return false
	}
	if vMinor < mMinor {
		return false
	}
	if vMinor == mMinor && vPatch < mPatch {
		return false
	}
	return true
}
