package crashship

import (
	"net/http"

	"github.com/spoolworks/crashship/pkg/log"
)

// Logger is the logging interface accepted by WithLogger. It is an alias
// for the log module's Logger so implementations can be shared.
type Logger = log.Logger

// LogField is a structured logging field.
type LogField = log.Field

// HTTPClient abstracts HTTP request execution so tests and embedders can
// inject their own transport. The standard *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures optional Crashship behavior.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       log.Logger
	eventHandler EventHandler
	plugins      []Plugin

	// Config-based features
	cleanupConfig        *CleanupConfig
	resourceGatingConfig *ResourceGatingConfig
}

func defaultOptions(client *http.Client) options {
	return options{
		httpClient: client,
		logger:     log.NewNoopLogger(),
	}
}

// WithHTTPClient sets a custom HTTP client for report uploads. Useful for
// injecting mocks in tests or clients with custom transports.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets a custom logger. Without this option the agent logs
// nothing.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler registers a handler for lifecycle and send events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin. May be given multiple times; plugins are
// initialized in registration order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		if plugin != nil {
			o.plugins = append(o.plugins, plugin)
		}
	}
}
