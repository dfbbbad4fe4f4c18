package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	SpoolDir        string  `toml:"spool_dir"`
	StateDir        string  `toml:"state_dir"`
	RunStateDir     string  `toml:"run_state_dir"`
	ServiceURL      string  `toml:"service_url"`
	AuthKey         string  `toml:"auth_key"`
	PollInterval    string  `toml:"poll_interval"`
	SendInterval    string  `toml:"send_interval"`
	HardInterval    string  `toml:"hard_interval"`
	HTTPTimeout     string  `toml:"http_timeout"`
	CPUThreshold    float64 `toml:"cpu_threshold"`
	MaxReportBytes  int64   `toml:"max_report_bytes"`
	MaxPerDay       int     `toml:"max_per_day"`
	MaxBytesPerDay  int64   `toml:"max_bytes_per_day"`
	MaxHoldOff      string  `toml:"max_hold_off"`
	Verify          *bool   `toml:"verify"`
	Once            *bool   `toml:"once"`
	IgnoreHoldOff   *bool   `toml:"ignore_hold_off"`
	IgnorePauseFile *bool   `toml:"ignore_pause_file"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.crashship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".crashship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("spool-dir", fc.SpoolDir, &cfg.SpoolDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("run-state-dir", fc.RunStateDir, &cfg.RunStateDir)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("send-interval", fc.SendInterval, &cfg.SendInterval); err != nil {
		return err
	}
	if err := s.setDuration("hard-interval", fc.HardInterval, &cfg.HardInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("max-hold-off", fc.MaxHoldOff, &cfg.MaxHoldOff); err != nil {
		return err
	}

	s.setFloat("cpu-threshold", fc.CPUThreshold, &cfg.CPUThreshold)

	s.setInt64("max-report-bytes", fc.MaxReportBytes, &cfg.MaxReportBytes)
	s.setInt("max-per-day", fc.MaxPerDay, &cfg.MaxPerDay)
	s.setInt64("max-bytes-per-day", fc.MaxBytesPerDay, &cfg.MaxBytesPerDay)

	s.setBool("verify", fc.Verify, &cfg.Verify)
	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("ignore-hold-off", fc.IgnoreHoldOff, &cfg.IgnoreHoldOff)
	s.setBool("ignore-pause-file", fc.IgnorePauseFile, &cfg.IgnorePauseFile)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
