package app

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spoolworks/crashship/internal/domain"
	"github.com/spoolworks/crashship/internal/ports"
	"github.com/spoolworks/crashship/pkg/lifecycle"
)

// Names of the control files the agent honors in its run-state directory.
const (
	// PauseFileName suspends sending while present.
	PauseFileName = "pause-sending"

	// MockFileName short-circuits sending without network I/O. An empty
	// file mocks success; content "1" mocks failure.
	MockFileName = "mock-sending"
)

// AgentConfig contains configuration for the agent loop.
type AgentConfig struct {
	PollInterval    time.Duration
	SendInterval    time.Duration
	HardInterval    time.Duration
	MaxReportBytes  int64
	MaxPerDay       int
	MaxBytesPerDay  int64
	RateWindow      time.Duration
	MaxHoldOff      time.Duration
	Verify          bool
	Once            bool
	IgnoreHoldOff   bool
	IgnorePauseFile bool

	// PendingDir is watched for new crash artifacts in daemon mode.
	PendingDir string

	// RunStateDir holds the pause, mock, and filter control files.
	RunStateDir string

	// Metadata for send operations
	Hostname   string
	OSArch     string
	AuthKey    string
	ServiceURL string
}

// Agent orchestrates the sweep-and-send loop over the crash spool.
type Agent struct {
	config    AgentConfig
	spool     ports.ReportSpool
	collector ports.CrashCollector
	sender    ports.ReportSender
	ledger    ports.UploadLedger
	stateRepo ports.StateRepository
	consent   ports.ConsentStore
	gate      ports.ResourceGate
	logger    ports.Logger
	emitter   SendEventEmitter
}

// SendEventEmitter is called on send success or failure.
type SendEventEmitter interface {
	OnSendSuccess(reportCount, bytesSent int, duration time.Duration)
	OnSendError(err error, reportCount int, retryable bool)
}

// NewAgent creates a new agent with the given dependencies. The resource
// gate and emitter may be nil.
func NewAgent(
	config AgentConfig,
	spool ports.ReportSpool,
	collector ports.CrashCollector,
	sender ports.ReportSender,
	ledger ports.UploadLedger,
	stateRepo ports.StateRepository,
	consent ports.ConsentStore,
	gate ports.ResourceGate,
	logger ports.Logger,
	emitter SendEventEmitter,
) *Agent {
	return &Agent{
		config:    config,
		spool:     spool,
		collector: collector,
		sender:    sender,
		ledger:    ledger,
		stateRepo: stateRepo,
		consent:   consent,
		gate:      gate,
		logger:    logger,
		emitter:   emitter,
	}
}

// Run executes the main sweep-and-send loop.
// It finalizes pending crash artifacts, ships eligible report sets, and
// persists progress. Returns when the context is canceled, or after a
// single pass in once mode.
func (a *Agent) Run(ctx context.Context) error {
	state, err := a.stateRepo.Load(ctx)
	if err != nil {
		a.logger.Error("failed to load state", ports.Err(err))
		// Continue with empty state
	}

	backoff := lifecycle.NewBackoff(500*time.Millisecond, 10*time.Second)

	var notify <-chan struct{}
	if !a.config.Once && a.config.PendingDir != "" {
		watcher := NewSpoolWatcher(a.config.PendingDir, a.logger)
		go watcher.Run(ctx)
		notify = watcher.Events()
	}

	// First pass picks up whatever accumulated while the agent was down.
	a.sweep(ctx, &state)
	a.sendPass(ctx, &state, backoff)

	if a.config.Once {
		return nil
	}

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notify:
		case <-ticker.C:
		}

		a.sweep(ctx, &state)
		a.sendPass(ctx, &state, backoff)
	}
}

// sweep finalizes pending crash artifacts into report sets.
func (a *Agent) sweep(ctx context.Context, state *domain.State) {
	finalized, err := a.collector.Sweep(ctx)
	if err != nil {
		a.logger.Error("sweep failed", ports.Err(err))
		return
	}

	state.LastSweep = time.Now().UTC()
	if finalized > 0 {
		state.TotalCollected += uint64(finalized)
		a.logger.Info("sweep finalized crashes", ports.Int("reports", finalized))
	}
	a.saveState(ctx, state)
}

// sendPass ships eligible report sets oldest-first, stopping at the first
// failure, rate limit, or gate deferral. Failed reports stay in the spool.
func (a *Agent) sendPass(ctx context.Context, state *domain.State, backoff *lifecycle.Backoff) {
	if !a.config.Once && !state.LastSend.IsZero() &&
		time.Since(state.LastSend) < a.config.SendInterval {
		return
	}

	if !a.config.IgnorePauseFile && a.paused() {
		a.logger.Debug("sending paused",
			ports.String("pause_file", filepath.Join(a.config.RunStateDir, PauseFileName)))
		return
	}

	reports, err := a.spool.Scan(ctx)
	if err != nil {
		a.logger.Error("spool scan failed", ports.Err(err))
		return
	}
	if len(reports) == 0 {
		return
	}

	if !a.consent.Granted() {
		a.logger.Debug("sending disabled without consent")
		return
	}

	// Spread the load after fleet-wide crash storms.
	if !a.config.IgnoreHoldOff && !a.config.Once && a.config.MaxHoldOff > 0 {
		delay := time.Duration(rand.Int63n(int64(a.config.MaxHoldOff)))
		a.logger.Debug("send hold-off", ports.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	for _, report := range reports {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if a.config.MaxReportBytes > 0 && report.PayloadBytes > a.config.MaxReportBytes {
			a.logger.Warn("dropping oversized report",
				ports.String("report", report.Basename),
				ports.Int64("payload_bytes", report.PayloadBytes),
				ports.Int64("limit", a.config.MaxReportBytes))
			a.drop(ctx, report, state)
			continue
		}

		if ok, err := a.withinRateLimit(ctx, report); err != nil {
			a.logger.Error("rate limit check failed", ports.Err(err))
			return
		} else if !ok {
			a.logger.Warn("upload rate limit reached, holding reports",
				ports.Int("max_per_day", a.config.MaxPerDay))
			return
		}

		if a.config.Verify {
			if err := a.spool.Verify(ctx, report); err != nil {
				if errors.Is(err, domain.ErrCorruptPayload) {
					a.logger.Warn("dropping corrupt report",
						ports.String("report", report.Basename), ports.Err(err))
					a.drop(ctx, report, state)
					continue
				}
				a.logger.Error("payload verify failed", ports.Err(err))
				return
			}
		}

		// Old reports override the gate so the spool cannot wedge on a
		// perpetually busy host.
		if a.gate != nil && time.Since(report.CapturedAt()) < a.config.HardInterval && !a.gate.OK() {
			a.logger.Debug("send deferred by resource gate",
				ports.String("report", report.Basename))
			return
		}

		if !a.trySend(ctx, report, state, backoff) {
			return
		}
	}
}

// trySend uploads one report set. Returns false when the pass should stop.
func (a *Agent) trySend(ctx context.Context, report domain.Report, state *domain.State, backoff *lifecycle.Backoff) bool {
	if mocked, fail := a.mockState(); mocked {
		if fail {
			err := errors.New("mocked send failure")
			a.logger.Error("send failed",
				ports.Err(err), ports.String("report", report.Basename))
			state.LastSendError = err.Error()
			a.saveState(ctx, state)
			if a.emitter != nil {
				a.emitter.OnSendError(err, 1, true)
			}
			backoff.Sleep()
			return false
		}
		a.logger.Info("mocking successful send", ports.String("report", report.Basename))
		a.finishSend(ctx, report, state)
		backoff.Reset()
		return true
	}

	metadata := ports.SendMetadata{
		Hostname:   a.config.Hostname,
		OSArch:     a.config.OSArch,
		ClientID:   report.Meta.ClientID,
		AuthKey:    a.config.AuthKey,
		ServiceURL: a.config.ServiceURL,
	}
	if metadata.ClientID == "" {
		metadata.ClientID = a.consent.ClientID()
	}

	start := time.Now()
	err := a.sender.Send(ctx, report, metadata)
	duration := time.Since(start)

	if err != nil {
		a.logger.Error("send failed",
			ports.Err(err),
			ports.String("report", report.Basename),
			ports.Int64("bytes", report.PayloadBytes),
		)
		state.LastSendError = err.Error()
		a.saveState(ctx, state)

		if a.emitter != nil {
			a.emitter.OnSendError(err, 1, true)
		}

		backoff.Sleep()
		return false
	}

	a.logger.Info("sent report",
		ports.String("report", report.Basename),
		ports.String("sig", report.Meta.Sig),
		ports.Int64("bytes", report.PayloadBytes),
		ports.Duration("duration", duration),
	)

	if a.emitter != nil {
		a.emitter.OnSendSuccess(1, int(report.PayloadBytes), duration)
	}

	a.finishSend(ctx, report, state)
	backoff.Reset()
	return true
}

// finishSend records the upload, removes the report set, and persists state.
func (a *Agent) finishSend(ctx context.Context, report domain.Report, state *domain.State) {
	record := domain.UploadRecord{
		Basename:     report.Basename,
		ExecName:     report.Meta.ExecName,
		Sig:          report.Meta.Sig,
		PayloadBytes: report.PayloadBytes,
		SentAt:       time.Now().UTC(),
	}
	if err := a.ledger.RecordUpload(ctx, record); err != nil {
		a.logger.Error("failed to record upload", ports.Err(err))
	}

	if err := a.spool.Remove(ctx, report); err != nil {
		a.logger.Error("failed to remove sent report",
			ports.Err(err), ports.String("report", report.Basename))
	}

	state.LastSend = time.Now().UTC()
	state.LastSendError = ""
	state.LastBasename = report.Basename
	state.TotalSent++
	state.TotalSentBytes += uint64(report.PayloadBytes)
	a.saveState(ctx, state)
}

// drop removes a report set without sending it.
func (a *Agent) drop(ctx context.Context, report domain.Report, state *domain.State) {
	if err := a.spool.Remove(ctx, report); err != nil {
		a.logger.Error("failed to remove dropped report",
			ports.Err(err), ports.String("report", report.Basename))
		return
	}
	state.TotalDropped++
	a.saveState(ctx, state)
}

// withinRateLimit checks the ledger against the rolling window caps.
func (a *Agent) withinRateLimit(ctx context.Context, report domain.Report) (bool, error) {
	windowStart := time.Now().Add(-a.config.RateWindow)

	if a.config.MaxPerDay > 0 {
		count, err := a.ledger.CountSince(ctx, windowStart)
		if err != nil {
			return false, err
		}
		if count >= a.config.MaxPerDay {
			return false, nil
		}
	}

	if a.config.MaxBytesPerDay > 0 {
		sent, err := a.ledger.BytesSince(ctx, windowStart)
		if err != nil {
			return false, err
		}
		if sent+report.PayloadBytes > a.config.MaxBytesPerDay {
			return false, nil
		}
	}

	return true, nil
}

func (a *Agent) saveState(ctx context.Context, state *domain.State) {
	if err := a.stateRepo.Save(ctx, *state); err != nil {
		a.logger.Error("failed to save state", ports.Err(err))
	}
}

func (a *Agent) paused() bool {
	_, err := os.Stat(filepath.Join(a.config.RunStateDir, PauseFileName))
	return err == nil
}

// mockState reports whether the mock file is present and whether it asks
// for a mocked failure.
func (a *Agent) mockState() (mocked, fail bool) {
	data, err := os.ReadFile(filepath.Join(a.config.RunStateDir, MockFileName))
	if err != nil {
		return false, false
	}
	return true, strings.TrimSpace(string(data)) == "1"
}
