// Package consent decides whether crash reporting is allowed and owns the
// stable client id minted at opt-in.
//
// Consent is a file: when <state-dir>/consent exists, reporting is granted
// and the file's content is the client id. A mock-consent file in the
// run-state directory overrides the answer to granted with a fixed id, so
// test harnesses can exercise the pipeline without touching real consent.
package consent

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileName is the consent file inside the state directory.
	FileName = "consent"

	// MockFileName is the override file inside the run-state directory.
	MockFileName = "mock-consent"

	// MockClientID is the client id reported under mock consent.
	MockClientID = "test-client-id"
)

// Store answers the consent question from the filesystem.
type Store struct {
	stateDir    string
	runStateDir string
}

// NewStore creates a consent store over the given state and run-state
// directories.
func NewStore(stateDir, runStateDir string) *Store {
	return &Store{stateDir: stateDir, runStateDir: runStateDir}
}

// Path returns the consent file path.
func (s *Store) Path() string {
	return filepath.Join(s.stateDir, FileName)
}

func (s *Store) mockPath() string {
	return filepath.Join(s.runStateDir, MockFileName)
}

func (s *Store) mocked() bool {
	if s.runStateDir == "" {
		return false
	}
	_, err := os.Stat(s.mockPath())
	return err == nil
}

// Granted reports whether consent is currently granted.
func (s *Store) Granted() bool {
	if s.mocked() {
		return true
	}
	_, err := os.Stat(s.Path())
	return err == nil
}

// ClientID returns the reporting id, or "" without consent.
func (s *Store) ClientID() string {
	if s.mocked() {
		return MockClientID
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Grant opts in: it mints a fresh client id unless one is already recorded,
// and returns the id in effect.
func (s *Store) Grant() (string, error) {
	if existing, err := os.ReadFile(s.Path()); err == nil {
		if id := strings.TrimSpace(string(existing)); id != "" {
			return id, nil
		}
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client id: %w", err)
	}
	id := hex.EncodeToString(buf)

	if err := os.MkdirAll(s.stateDir, 0o700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.Path(), []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write consent: %w", err)
	}
	return id, nil
}

// Revoke opts out by removing the consent file. Revoking absent consent is
// not an error.
func (s *Store) Revoke() error {
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
