package consent

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestGrantMintsClientID(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "state"), "")

	if store.Granted() {
		t.Fatal("Granted before Grant")
	}
	if got := store.ClientID(); got != "" {
		t.Fatalf("ClientID before Grant = %q, want empty", got)
	}

	id, err := store.Grant()
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if len(id) != 32 {
		t.Errorf("client id length = %d, want 32", len(id))
	}
	if _, err := hex.DecodeString(id); err != nil {
		t.Errorf("client id %q is not hex: %v", id, err)
	}

	if !store.Granted() {
		t.Error("Granted = false after Grant")
	}
	if got := store.ClientID(); got != id {
		t.Errorf("ClientID = %q, want %q", got, id)
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	store := NewStore(t.TempDir(), "")

	first, err := store.Grant()
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	second, err := store.Grant()
	if err != nil {
		t.Fatalf("second Grant: %v", err)
	}
	if first != second {
		t.Errorf("second Grant minted a new id: %q then %q", first, second)
	}
}

func TestRevoke(t *testing.T) {
	store := NewStore(t.TempDir(), "")

	if _, err := store.Grant(); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if err := store.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if store.Granted() {
		t.Error("Granted = true after Revoke")
	}
	if got := store.ClientID(); got != "" {
		t.Errorf("ClientID after Revoke = %q, want empty", got)
	}

	// Revoking again is not an error.
	if err := store.Revoke(); err != nil {
		t.Errorf("Revoke without consent: %v", err)
	}
}

func TestMockConsentOverrides(t *testing.T) {
	stateDir := t.TempDir()
	runDir := t.TempDir()
	store := NewStore(stateDir, runDir)

	if store.Granted() {
		t.Fatal("Granted without consent or mock")
	}

	if err := os.WriteFile(filepath.Join(runDir, MockFileName), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if !store.Granted() {
		t.Error("Granted = false with mock file present")
	}
	if got := store.ClientID(); got != MockClientID {
		t.Errorf("ClientID = %q, want %q", got, MockClientID)
	}
}

func TestMockIgnoredWithoutRunStateDir(t *testing.T) {
	store := NewStore(t.TempDir(), "")
	if store.Granted() {
		t.Error("Granted = true with no consent and no run-state dir")
	}
}

func TestClientIDTrimsWhitespace(t *testing.T) {
	stateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(stateDir, FileName), []byte("  abc123\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewStore(stateDir, "")
	if got := store.ClientID(); got != "abc123" {
		t.Errorf("ClientID = %q, want %q", got, "abc123")
	}
}
