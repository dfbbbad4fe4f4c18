package crashship

import (
	"context"

	"github.com/spoolworks/crashship/pkg/log"
)

// Plugin extends the agent with optional behavior. Plugins are initialized
// in registration order during Start and shut down in reverse order during
// Stop. An initialization failure aborts the start; a shutdown failure is
// logged and the remaining plugins still shut down.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called during Start with the resolved configuration.
	// The context is canceled when the agent stops.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called during Stop.
	Shutdown(ctx context.Context) error
}

// PluginConfig carries the resolved agent configuration into plugins.
type PluginConfig struct {
	// SpoolDir is the spool root directory.
	SpoolDir string

	// StateDir holds the consent record, upload ledger, and agent state.
	StateDir string

	// RunStateDir holds the runtime control files.
	RunStateDir string

	// ServiceURL is the ingest endpoint base URL.
	ServiceURL string

	// AuthKey authenticates requests to the service.
	AuthKey string

	// Logger is the logger the agent was configured with.
	Logger log.Logger
}

// BasePlugin provides a name plus no-op Initialize and Shutdown. Embed it
// to implement only the hooks you need.
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a BasePlugin with the given name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

// Name returns the plugin name.
func (p BasePlugin) Name() string { return p.name }

// Initialize does nothing.
func (p BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error { return nil }

// Shutdown does nothing.
func (p BasePlugin) Shutdown(ctx context.Context) error { return nil }
