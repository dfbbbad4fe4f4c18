package consentwatch

import "github.com/spoolworks/crashship/pkg/crashship"

// WithConsentWatcher returns a crashship Option that enables consent
// mirroring. When enabled, the plugin watches the consent record and
// reports grants and revocations to the service.
//
// Usage:
//
//	agent, err := crashship.New(cfg,
//	    consentwatch.WithConsentWatcher(consentwatch.Config{
//	        RetryInterval: 5 * time.Second,
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConsentWatcher(cfg Config) crashship.Option {
	plugin := New(cfg)
	return crashship.WithPlugin(plugin)
}

// WithDefaultConsentWatcher returns a crashship Option that enables
// consent mirroring with default settings (retry every 5s, debounce
// 100ms).
//
// Usage:
//
//	agent, err := crashship.New(cfg, consentwatch.WithDefaultConsentWatcher())
func WithDefaultConsentWatcher() crashship.Option {
	return WithConsentWatcher(DefaultConfig())
}
