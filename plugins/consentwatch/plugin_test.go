package consentwatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spoolworks/crashship/internal/consent"
	"github.com/spoolworks/crashship/pkg/crashship"
)

// TestPlugin_EndpointPath verifies that the plugin posts to the consent
// ingest endpoint the backend serves.
func TestPlugin_EndpointPath(t *testing.T) {
	stateDir := t.TempDir()

	var requestPath string
	var mu sync.Mutex

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestPath = r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	plugin := New(Config{
		RetryInterval: 100 * time.Millisecond,
		DebounceDelay: 10 * time.Millisecond,
		HTTPTimeout:   5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := plugin.Initialize(ctx, crashship.PluginConfig{
		StateDir:    stateDir,
		RunStateDir: t.TempDir(),
		ServiceURL:  ts.URL,
		AuthKey:     "test-key",
		Logger:      &noopLogger{},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return requestPath != ""
	})

	mu.Lock()
	path := requestPath
	mu.Unlock()

	expectedPath := "/v1/ingest/consent"
	if path != expectedPath {
		t.Errorf("Request path = %q, want %q", path, expectedPath)
	}

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

// TestPlugin_EndpointConsistency ensures the plugin and the ingest server
// agree on the endpoint.
func TestPlugin_EndpointConsistency(t *testing.T) {
	expected := "/v1/ingest/consent"
	if consentEndpoint != expected {
		t.Errorf("consentEndpoint = %q, want %q (must match internal/ingest/server.go)", consentEndpoint, expected)
	}
}

func TestPlugin_SendsGrantedStatus(t *testing.T) {
	stateDir := t.TempDir()
	runStateDir := t.TempDir()

	store := consent.NewStore(stateDir, runStateDir)
	clientID, err := store.Grant()
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	var mu sync.Mutex
	var receivedGranted, receivedClientID, receivedCapturedAt string
	var receivedHeaders http.Header
	var got bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		receivedHeaders = r.Header.Clone()

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		receivedGranted = r.FormValue("granted")
		receivedClientID = r.FormValue("client_id")
		receivedCapturedAt = r.FormValue("captured_at")
		got = true

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	plugin := New(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = plugin.Initialize(ctx, crashship.PluginConfig{
		StateDir:    stateDir,
		RunStateDir: runStateDir,
		ServiceURL:  ts.URL,
		AuthKey:     "secret",
		Logger:      &noopLogger{},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got
	})

	mu.Lock()
	granted := receivedGranted
	gotClientID := receivedClientID
	capturedAt := receivedCapturedAt
	headers := receivedHeaders
	mu.Unlock()

	if granted != "true" {
		t.Errorf("granted = %q, want true", granted)
	}
	if gotClientID != clientID {
		t.Errorf("client_id = %q, want %q", gotClientID, clientID)
	}
	if _, err := time.Parse(time.RFC3339Nano, capturedAt); err != nil {
		t.Errorf("captured_at %q is not RFC3339Nano: %v", capturedAt, err)
	}
	if headers.Get("Authorization") != "Bearer secret" {
		t.Errorf("Authorization header = %v, want Bearer secret", headers.Get("Authorization"))
	}

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_RevokedStatus(t *testing.T) {
	stateDir := t.TempDir()
	// No consent record

	var mu sync.Mutex
	var receivedGranted, receivedClientID string
	var got bool

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return
		}
		receivedGranted = r.FormValue("granted")
		receivedClientID = r.FormValue("client_id")
		got = true

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	plugin := New(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := plugin.Initialize(ctx, crashship.PluginConfig{
		StateDir:    stateDir,
		RunStateDir: t.TempDir(),
		ServiceURL:  ts.URL,
		Logger:      &noopLogger{},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got
	})

	mu.Lock()
	granted := receivedGranted
	clientID := receivedClientID
	mu.Unlock()

	if granted != "false" {
		t.Errorf("granted = %q, want false", granted)
	}
	if clientID != "" {
		t.Errorf("client_id = %q, want empty for revoked consent", clientID)
	}

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_ReportsGrantChange(t *testing.T) {
	stateDir := t.TempDir()
	runStateDir := t.TempDir()

	var mu sync.Mutex
	var grantedValues []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return
		}
		grantedValues = append(grantedValues, r.FormValue("granted"))

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	plugin := New(Config{
		RetryInterval: 100 * time.Millisecond,
		DebounceDelay: 10 * time.Millisecond,
		HTTPTimeout:   5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := plugin.Initialize(ctx, crashship.PluginConfig{
		StateDir:    stateDir,
		RunStateDir: runStateDir,
		ServiceURL:  ts.URL,
		Logger:      &noopLogger{},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Initial status is revoked
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(grantedValues) >= 1
	})

	// Granting consent rewrites the record, which the watcher picks up
	store := consent.NewStore(stateDir, runStateDir)
	if _, err := store.Grant(); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(grantedValues) >= 2 && grantedValues[len(grantedValues)-1] == "true"
	})

	mu.Lock()
	first, last := grantedValues[0], grantedValues[len(grantedValues)-1]
	mu.Unlock()

	if first != "false" {
		t.Errorf("first report granted = %q, want false", first)
	}
	if last != "true" {
		t.Errorf("last report granted = %q, want true", last)
	}

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_Name(t *testing.T) {
	plugin := New(DefaultConfig())
	if plugin.Name() != "consentwatch" {
		t.Errorf("Name() = %v, want consentwatch", plugin.Name())
	}
}

func TestPlugin_DisabledWhenStateDirEmpty(t *testing.T) {
	var requestCount int
	var mu sync.Mutex

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestCount++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	plugin := New(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := plugin.Initialize(ctx, crashship.PluginConfig{
		StateDir:   "", // Empty disables the watcher
		ServiceURL: ts.URL,
		Logger:     &noopLogger{},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	count := requestCount
	mu.Unlock()

	if count != 0 {
		t.Errorf("Expected 0 requests when disabled, got %d", count)
	}

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before deadline")
	}
}

// noopLogger implements crashship.Logger for testing
type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...crashship.LogField) {}
func (noopLogger) Info(msg string, fields ...crashship.LogField)  {}
func (noopLogger) Warn(msg string, fields ...crashship.LogField)  {}
func (noopLogger) Error(msg string, fields ...crashship.LogField) {}
