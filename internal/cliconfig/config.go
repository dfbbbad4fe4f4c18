package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultServiceURL is the default endpoint for shipping crash reports.
const DefaultServiceURL = "https://api.spoolworks.io"

// DefaultSpoolDir is where crash artifacts live unless overridden.
const DefaultSpoolDir = "/var/spool/crashship"

// Config holds CLI configuration for crashship.
type Config struct {
	SpoolDir    string
	StateDir    string
	RunStateDir string

	ServiceURL string
	AuthKey    string

	PollInterval time.Duration
	SendInterval time.Duration
	HardInterval time.Duration
	HTTPTimeout  time.Duration

	CPUThreshold   float64
	MaxReportBytes int64
	MaxPerDay      int
	MaxBytesPerDay int64
	MaxHoldOff     time.Duration

	Verify          bool
	Once            bool
	IgnoreHoldOff   bool
	IgnorePauseFile bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		SpoolDir:       DefaultSpoolDir,
		ServiceURL:     DefaultServiceURL,
		PollInterval:   30 * time.Second,
		SendInterval:   30 * time.Second,
		HardInterval:   10 * time.Minute,
		HTTPTimeout:    15 * time.Second,
		CPUThreshold:   0.85,
		MaxReportBytes: 1 << 20,  // 1MB
		MaxPerDay:      32,
		MaxBytesPerDay: 24 << 20, // 24MB
		MaxHoldOff:     10 * time.Second,
		StateDir:       "", // Derived from SpoolDir during Validate
		AuthKey:        os.Getenv("CRASHSHIP_AUTH_KEY"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.SpoolDir == "" {
		return fmt.Errorf("spool-dir is required")
	}

	if c.StateDir == "" {
		c.StateDir = filepath.Join(c.SpoolDir, "state")
	}
	if c.RunStateDir == "" {
		c.RunStateDir = filepath.Join(c.StateDir, "run")
	}

	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}

	// Ensure no trailing slash
	if len(c.ServiceURL) > 0 && c.ServiceURL[len(c.ServiceURL)-1] == '/' {
		c.ServiceURL = c.ServiceURL[:len(c.ServiceURL)-1]
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.SendInterval <= 0 {
		return fmt.Errorf("send interval must be positive")
	}
	if c.MaxReportBytes <= 0 {
		return fmt.Errorf("max report bytes must be positive")
	}

	return nil
}

// PendingDir returns the directory crashing processes write raw artifacts to.
func (c *Config) PendingDir() string {
	return filepath.Join(c.SpoolDir, "pending")
}

// ReportsDir returns the directory holding finalized report sets.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.SpoolDir, "reports")
}

// ConsentPath returns the location of the consent record.
func (c *Config) ConsentPath() string {
	return filepath.Join(c.StateDir, "consent")
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value if positive and flag not changed.
func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setInt64FromString parses a string to int64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
