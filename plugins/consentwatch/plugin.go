// Package consentwatch mirrors consent changes to the collection service.
// When enabled, it watches the consent record and reports grants and
// revocations so the service can stop retaining data for a client that
// opted out.
package consentwatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spoolworks/crashship/internal/consent"
	"github.com/spoolworks/crashship/pkg/crashship"
)

const consentEndpoint = "/v1/ingest/consent"

// Plugin implements consent mirroring. It watches the consent record in
// the agent state directory and posts the current status to the service
// whenever it changes.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	retryInterval time.Duration
	debounceDelay time.Duration

	// Runtime state
	stateDir   string
	serviceURL string
	authKey    string
	store      *consent.Store
	logger     crashship.Logger
	httpClient *http.Client
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	debounce   *time.Timer
}

// Config holds configuration options for the consent watcher plugin.
type Config struct {
	// RetryInterval is the delay between retries on failure.
	// Default: 5 seconds
	RetryInterval time.Duration

	// DebounceDelay is the delay to wait after a consent change before
	// sending. Default: 100 milliseconds
	DebounceDelay time.Duration

	// HTTPTimeout is the timeout for HTTP requests.
	// Default: 30 seconds
	HTTPTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 5 * time.Second,
		DebounceDelay: 100 * time.Millisecond,
		HTTPTimeout:   30 * time.Second,
	}
}

// New creates a consent watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	return &Plugin{
		retryInterval: cfg.RetryInterval,
		debounceDelay: cfg.DebounceDelay,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "consentwatch"
}

// Initialize sets up the plugin and starts the consent watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg crashship.PluginConfig) error {
	p.mu.Lock()
	p.stateDir = cfg.StateDir
	p.serviceURL = cfg.ServiceURL
	p.authKey = cfg.AuthKey
	p.store = consent.NewStore(cfg.StateDir, cfg.RunStateDir)
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.stateDir == "" || p.serviceURL == "" {
		p.logger.Warn("consent watcher disabled: state dir or service URL not configured")
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("consent watcher plugin initialized")

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	return nil
}

// Shutdown stops the consent watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// watchLoop watches the state directory for consent record changes. The
// directory is watched rather than the file so grants and revocations are
// seen even when the record does not exist yet.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("consent watcher: failed to create watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(p.stateDir); err != nil {
		p.logger.Error("consent watcher: failed to watch state dir")
		// Still report the current status
		p.sendConsentWithRetry(ctx)
		return
	}

	// Report current status on startup
	p.sendConsentWithRetry(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != consent.FileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			p.debounceSend(ctx, p.debounceDelay)

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("consent watcher: watcher error")
		}
	}
}

func (p *Plugin) debounceSend(ctx context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(delay, func() {
		p.sendConsentWithRetry(ctx)
	})
}

func (p *Plugin) consentURL() string { return p.serviceURL + consentEndpoint }

// buildMultipartPayload captures the current consent status as form data.
func (p *Plugin) buildMultipartPayload() (*bytes.Buffer, string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	writer.WriteField("captured_at", time.Now().UTC().Format(time.RFC3339Nano))
	writer.WriteField("granted", strconv.FormatBool(p.store.Granted()))
	if id := p.store.ClientID(); id != "" {
		writer.WriteField("client_id", id)
	}

	contentType := writer.FormDataContentType()
	writer.Close()

	return &buf, contentType
}

// sendConsentWithRetry retries until success or context cancellation. The
// status is snapshotted once; a change during retries lands in the next
// debounced send.
func (p *Plugin) sendConsentWithRetry(ctx context.Context) {
	retryCount := 0

	snapshot, contentType := p.buildMultipartPayload()
	snapshotBytes := snapshot.Bytes()

	for {
		reader := bytes.NewReader(snapshotBytes)

		if err := p.send(ctx, reader, contentType); err == nil {
			if retryCount > 0 {
				p.logger.Info("consent watcher: reported consent status after retries")
			} else {
				p.logger.Info("consent watcher: reported consent status")
			}
			return
		}

		retryCount++
		p.logger.Error("consent watcher: send failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
			// Next retry
		}
	}
}

func (p *Plugin) send(ctx context.Context, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.consentURL(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if p.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.authKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Ensure Plugin implements crashship.Plugin.
var _ crashship.Plugin = (*Plugin)(nil)
