// Package crashship provides an embeddable crash reporting agent.
//
// Crashship watches a spool directory for crash artifacts written by
// instrumented processes, seals them into report sets, and ships them to a
// collection service. Uploads honor user consent, rolling rate limits, and
// host resource pressure, so the agent can run continuously on end-user
// machines without getting in the way.
//
// # Basic Usage
//
// Create an instance with a configuration and start it:
//
//	agent, err := crashship.New(crashship.Config{
//		SpoolDir:   "/var/spool/crashship",
//		ServiceURL: "https://crash.example.com",
//		AuthKey:    os.Getenv("CRASHSHIP_AUTH_KEY"),
//	})
//	if err != nil {
//		return err
//	}
//	if err := agent.Start(ctx); err != nil {
//		return err
//	}
//	defer agent.Stop()
//
// # Configuration
//
// Config controls the spool layout, the service endpoint, sweep and send
// intervals, and the upload caps. SetDefaults fills in everything except
// SpoolDir, which is required. See the Config type for the full list.
//
// # Event Handling
//
// Register an EventHandler to observe lifecycle transitions and delivery
// outcomes:
//
//	type handler struct {
//		crashship.BaseEventHandler
//	}
//
//	func (h *handler) OnSendError(e crashship.SendErrorEvent) {
//		metrics.Inc("crash_upload_failures")
//	}
//
//	agent, err := crashship.New(cfg, crashship.WithEventHandler(&handler{}))
//
// BaseEventHandler provides no-op defaults so handlers implement only the
// events they need.
//
// # Dependency Injection
//
// WithHTTPClient and WithLogger replace the agent's HTTP transport and
// logger. Both default to quiet, stdlib-backed implementations.
//
// # Lifecycle States
//
// An instance moves through Stopped, Starting, Running, Stopping, and
// Crashed. Status reports the current state; State.CanStart and
// State.CanStop describe the legal operations. A crashed instance can be
// started again. Done exposes a channel closed when the run loop exits,
// which with Config.Once tells the caller the single pass is finished.
//
// # Plugins and Cleanup
//
// WithPlugin registers optional extensions initialized on Start and shut
// down in reverse order on Stop. WithCleanupConfig enables periodic spool
// trimming and WithResourceGatingConfig defers uploads while the host CPU
// is busy.
//
// # Version
//
// ModuleVersions and CompatibilityMatrix report the versions of the
// sub-modules compiled into the binary. New refuses to construct an
// instance when a sub-module is older than the matrix allows.
package crashship
