package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spoolworks/crashship/internal/adapters/fs"
	"github.com/spoolworks/crashship/internal/domain"
)

func writeReportSet(t *testing.T, spool *fs.Spool, exec string, captured time.Time, pid, payloadLen int) (base string, setBytes int64) {
	t.Helper()
	if err := spool.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	base = domain.ReportBasename(exec, captured, pid)
	payload := bytes.Repeat([]byte("x"), payloadLen)
	meta := domain.Meta{
		ExecName:   exec,
		PID:        pid,
		CapturedAt: captured,
		Payload:    base + ".log",
	}

	if err := os.WriteFile(filepath.Join(spool.ReportsDir(), base+".log"), payload, 0o600); err != nil {
		t.Fatal(err)
	}
	encoded := meta.Encode()
	if err := os.WriteFile(filepath.Join(spool.ReportsDir(), base+".meta"), encoded, 0o600); err != nil {
		t.Fatal(err)
	}
	return base, int64(payloadLen + len(encoded))
}

func TestCleanupTrimsOldestReports(t *testing.T) {
	spool := fs.NewSpool(t.TempDir(), 0, 0)
	logger := &captureLogger{}

	captured := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var setBytes int64
	var newest string
	for i := 0; i < 4; i++ {
		base, size := writeReportSet(t, spool, "myapp", captured.Add(time.Duration(i)*time.Minute), 100+i, 256)
		setBytes = size
		newest = base
	}

	// Four sets on disk; trim until at most one and a half remain.
	runner := NewCleanupRunner(CleanupConfig{
		HighWatermark: 2 * setBytes,
		LowWatermark:  setBytes + setBytes/2,
	}, spool, spool, nil, logger)

	runner.RunOnce(context.Background())

	remaining, err := spool.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining sets = %d, want 1", len(remaining))
	}
	if remaining[0].Basename != newest {
		t.Errorf("kept %q, want newest %q", remaining[0].Basename, newest)
	}

	total, err := spool.TotalBytes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if total > setBytes+setBytes/2 {
		t.Errorf("TotalBytes = %d, want at most low watermark %d", total, setBytes+setBytes/2)
	}
}

func TestCleanupNoopBelowHighWatermark(t *testing.T) {
	spool := fs.NewSpool(t.TempDir(), 0, 0)
	logger := &captureLogger{}

	captured := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	writeReportSet(t, spool, "myapp", captured, 100, 64)

	runner := NewCleanupRunner(CleanupConfig{
		HighWatermark: 1 << 20,
		LowWatermark:  1 << 19,
	}, spool, spool, nil, logger)

	runner.RunOnce(context.Background())

	remaining, err := spool.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining sets = %d, want 1 (below watermark, nothing removed)", len(remaining))
	}
}

func TestCleanupPrunesStalePending(t *testing.T) {
	spool := fs.NewSpool(t.TempDir(), 0, 0)
	logger := &captureLogger{}
	if err := spool.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	stale := filepath.Join(spool.PendingDir(), domain.PendingName("myapp", 101, now.Add(-48*time.Hour)))
	fresh := filepath.Join(spool.PendingDir(), domain.PendingName("myapp", 102, now))
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("goroutine 1 [running]:\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	old := now.Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	runner := NewCleanupRunner(CleanupConfig{
		HighWatermark: 1 << 20,
		LowWatermark:  1 << 19,
		PendingMaxAge: 24 * time.Hour,
	}, spool, spool, nil, logger)

	runner.RunOnce(context.Background())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale pending artifact not removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh pending artifact should survive: %v", err)
	}
}

func TestCleanupPrunesLedger(t *testing.T) {
	spool := fs.NewSpool(t.TempDir(), 0, 0)
	logger := &captureLogger{}
	ledger := &memLedger{}
	ctx := context.Background()

	now := time.Now()
	for _, rec := range []domain.UploadRecord{
		{Basename: "expired", SentAt: now.Add(-10 * 24 * time.Hour)},
		{Basename: "recent", SentAt: now.Add(-time.Hour)},
	} {
		if err := ledger.RecordUpload(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewCleanupRunner(CleanupConfig{
		HighWatermark: 1 << 20,
		LowWatermark:  1 << 19,
		LedgerMaxAge:  7 * 24 * time.Hour,
	}, spool, spool, ledger, logger)

	runner.RunOnce(ctx)

	if ledger.count() != 1 {
		t.Fatalf("ledger holds %d records after cleanup, want 1", ledger.count())
	}
	recent, err := ledger.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if recent[0].Basename != "recent" {
		t.Errorf("surviving record = %q, want the recent one", recent[0].Basename)
	}

	// A pruned ledger no longer counts the expired row anywhere.
	count, err := ledger.CountSince(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountSince after prune = %d, want 1", count)
	}
}
