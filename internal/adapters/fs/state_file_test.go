package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spoolworks/crashship/internal/domain"
)

func TestStateSaveLoadRoundTrip(t *testing.T) {
	repo := NewStateFileRepository(filepath.Join(t.TempDir(), "state"))
	ctx := context.Background()

	want := domain.State{
		LastSweep:      time.Unix(1724500000, 0).UTC(),
		LastSend:       time.Unix(1724500100, 0).UTC(),
		LastSendError:  "connection refused",
		LastBasename:   "svc.20240824.114820.7",
		TotalCollected: 12,
		TotalSent:      9,
		TotalSentBytes: 314159,
		TotalDropped:   1,
	}

	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.LastSweep.Equal(want.LastSweep) || !got.LastSend.Equal(want.LastSend) {
		t.Errorf("timestamps differ: got %+v", got)
	}
	if got.LastSendError != want.LastSendError || got.LastBasename != want.LastBasename {
		t.Errorf("strings differ: got %+v", got)
	}
	if got.TotalCollected != want.TotalCollected || got.TotalSent != want.TotalSent ||
		got.TotalSentBytes != want.TotalSentBytes || got.TotalDropped != want.TotalDropped {
		t.Errorf("counters differ: got %+v", got)
	}

	// The temp file must not linger after a successful save.
	if _, err := os.Stat(repo.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestStateLoadMissingFile(t *testing.T) {
	repo := NewStateFileRepository(t.TempDir())

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (domain.State{}) {
		t.Errorf("Load of missing file = %+v, want zero state", got)
	}
}

func TestStateLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	repo := NewStateFileRepository(dir)
	if err := os.WriteFile(repo.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Load(context.Background()); err == nil {
		t.Error("Load of corrupt file succeeded, want error")
	}
}
