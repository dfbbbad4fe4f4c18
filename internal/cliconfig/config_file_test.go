package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				SpoolDir:     "/test/spool",
				StateDir:     "/test/state",
				PollInterval: "5m",
				CPUThreshold: 0.8,
				MaxPerDay:    16,
				Verify:       &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				SpoolDir:     "/test/spool",
				StateDir:     "/test/state",
				PollInterval: 5 * time.Minute,
				CPUThreshold: 0.8,
				MaxPerDay:    16,
				Verify:       true,
			},
			wantErr: false,
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				SpoolDir: "/config/spool",
				StateDir: "/config/state",
			},
			changed: map[string]bool{"spool-dir": true},
			initial: Config{
				SpoolDir: "/flag/spool",
				StateDir: "/flag/state",
			},
			expected: Config{
				SpoolDir: "/flag/spool", // unchanged because flag was set
				StateDir: "/config/state",
			},
			wantErr: false,
		},
		{
			name: "returns error for invalid duration",
			fileConfig: FileConfig{
				PollInterval: "not-a-duration",
			},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				SpoolDir:        "/tmp/spool",
				StateDir:        "/tmp/state",
				RunStateDir:     "/tmp/run",
				ServiceURL:      "http://example.com",
				AuthKey:         "secret",
				PollInterval:    "1m",
				SendInterval:    "2m",
				HardInterval:    "3m",
				HTTPTimeout:     "30s",
				CPUThreshold:    0.7,
				MaxReportBytes:  2048,
				MaxPerDay:       8,
				MaxBytesPerDay:  4096,
				MaxHoldOff:      "20s",
				Verify:          &trueVal,
				Once:            &falseVal,
				IgnoreHoldOff:   &trueVal,
				IgnorePauseFile: &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				SpoolDir:        "/tmp/spool",
				StateDir:        "/tmp/state",
				RunStateDir:     "/tmp/run",
				ServiceURL:      "http://example.com",
				AuthKey:         "secret",
				PollInterval:    1 * time.Minute,
				SendInterval:    2 * time.Minute,
				HardInterval:    3 * time.Minute,
				HTTPTimeout:     30 * time.Second,
				CPUThreshold:    0.7,
				MaxReportBytes:  2048,
				MaxPerDay:       8,
				MaxBytesPerDay:  4096,
				MaxHoldOff:      20 * time.Second,
				Verify:          true,
				Once:            false,
				IgnoreHoldOff:   true,
				IgnorePauseFile: true,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyFileConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyFileConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr {
				if cfg != tt.expected {
					t.Errorf("config = %+v, want %+v", cfg, tt.expected)
				}
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	// Create a temporary TOML file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
spool_dir = "/tmp/spool"
state_dir = "/tmp/state"
poll_interval = "5m"
cpu_threshold = 0.8
max_per_day = 16
verify = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.SpoolDir != "/tmp/spool" {
		t.Errorf("SpoolDir = %v, want /tmp/spool", fc.SpoolDir)
	}
	if fc.StateDir != "/tmp/state" {
		t.Errorf("StateDir = %v, want /tmp/state", fc.StateDir)
	}
	if fc.PollInterval != "5m" {
		t.Errorf("PollInterval = %v, want 5m", fc.PollInterval)
	}
	if fc.CPUThreshold != 0.8 {
		t.Errorf("CPUThreshold = %v, want 0.8", fc.CPUThreshold)
	}
	if fc.MaxPerDay != 16 {
		t.Errorf("MaxPerDay = %v, want 16", fc.MaxPerDay)
	}
	if fc.Verify == nil || *fc.Verify != true {
		t.Errorf("Verify = %v, want true", fc.Verify)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
spool_dir = "/test"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	// Should return a path containing .crashship
	if path != "" && !strings.Contains(path, ".crashship") {
		t.Errorf("DefaultConfigPath() = %v, should contain .crashship", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
