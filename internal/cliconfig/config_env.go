package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (CRASHSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("spool-dir", os.Getenv("CRASHSHIP_SPOOL_DIR"), &cfg.SpoolDir)
	s.setString("state-dir", os.Getenv("CRASHSHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("run-state-dir", os.Getenv("CRASHSHIP_RUN_STATE_DIR"), &cfg.RunStateDir)
	s.setString("service-url", os.Getenv("CRASHSHIP_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("CRASHSHIP_AUTH_KEY"), &cfg.AuthKey)

	if err := s.setDuration("poll", os.Getenv("CRASHSHIP_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("send-interval", os.Getenv("CRASHSHIP_SEND_INTERVAL"), &cfg.SendInterval); err != nil {
		return err
	}
	if err := s.setDuration("hard-interval", os.Getenv("CRASHSHIP_HARD_INTERVAL"), &cfg.HardInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("CRASHSHIP_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("max-hold-off", os.Getenv("CRASHSHIP_MAX_HOLD_OFF"), &cfg.MaxHoldOff); err != nil {
		return err
	}

	if err := s.setFloatFromString("cpu-threshold", os.Getenv("CRASHSHIP_CPU_THRESHOLD"), &cfg.CPUThreshold); err != nil {
		return err
	}

	if err := s.setInt64FromString("max-report-bytes", os.Getenv("CRASHSHIP_MAX_REPORT_BYTES"), &cfg.MaxReportBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("max-per-day", os.Getenv("CRASHSHIP_MAX_PER_DAY"), &cfg.MaxPerDay); err != nil {
		return err
	}
	if err := s.setInt64FromString("max-bytes-per-day", os.Getenv("CRASHSHIP_MAX_BYTES_PER_DAY"), &cfg.MaxBytesPerDay); err != nil {
		return err
	}

	s.setBoolFromString("verify", os.Getenv("CRASHSHIP_VERIFY"), &cfg.Verify)
	s.setBoolFromString("once", os.Getenv("CRASHSHIP_ONCE"), &cfg.Once)
	s.setBoolFromString("ignore-hold-off", os.Getenv("CRASHSHIP_IGNORE_HOLD_OFF"), &cfg.IgnoreHoldOff)
	s.setBoolFromString("ignore-pause-file", os.Getenv("CRASHSHIP_IGNORE_PAUSE_FILE"), &cfg.IgnorePauseFile)

	return nil
}
