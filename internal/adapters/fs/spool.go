package fs

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spoolworks/crashship/internal/domain"
)

const (
	pendingDirName = "pending"
	reportsDirName = "reports"

	payloadSuffix = ".log"
	metaSuffix    = ".meta"
)

// DefaultSpoolRoot is where the agent keeps its spool unless configured
// otherwise.
const DefaultSpoolRoot = "/var/spool/crashship"

const (
	// DefaultMaxReports caps the number of finalized sets kept on disk.
	DefaultMaxReports = 32

	// DefaultOrphanAge is how long incomplete sets may linger before the
	// scanner removes them.
	DefaultOrphanAge = 24 * time.Hour
)

// Spool implements ports.ReportSpool and ports.PendingSpool over the
// on-disk layout <root>/pending and <root>/reports.
type Spool struct {
	root       string
	maxReports int
	orphanAge  time.Duration
}

// NewSpool creates a spool rooted at root. Zero maxReports and orphanAge
// select the defaults.
func NewSpool(root string, maxReports int, orphanAge time.Duration) *Spool {
	if root == "" {
		root = DefaultSpoolRoot
	}
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}
	if orphanAge <= 0 {
		orphanAge = DefaultOrphanAge
	}
	return &Spool{root: root, maxReports: maxReports, orphanAge: orphanAge}
}

// Root returns the spool root directory.
func (s *Spool) Root() string { return s.root }

// PendingDir returns the directory crashing processes write into.
func (s *Spool) PendingDir() string { return filepath.Join(s.root, pendingDirName) }

// ReportsDir returns the directory holding finalized report sets.
func (s *Spool) ReportsDir() string { return filepath.Join(s.root, reportsDirName) }

// EnsureDirs creates the spool layout. Crash data is private to the agent,
// so directories are 0700.
func (s *Spool) EnsureDirs() error {
	for _, dir := range []string{s.root, s.PendingDir(), s.ReportsDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create spool dir %s: %w", dir, err)
		}
	}
	return nil
}

// Scan returns all shippable report sets oldest-first. Sets that are
// incomplete (no done terminator, missing payload, unparseable meta) are
// skipped, and removed outright once older than the orphan age.
func (s *Spool) Scan(ctx context.Context) ([]domain.Report, error) {
	entries, err := os.ReadDir(s.ReportsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan reports: %w", err)
	}

	now := time.Now()
	claimed := map[string]bool{}
	var reports []domain.Report

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metaSuffix) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), metaSuffix)
		metaPath := filepath.Join(s.ReportsDir(), e.Name())

		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		meta, err := domain.ParseMeta(data)
		if err != nil || !meta.Done || meta.Payload == "" {
			s.removeIfStale(metaPath, now)
			continue
		}

		payloadPath := filepath.Join(s.ReportsDir(), meta.Payload)
		fi, err := os.Stat(payloadPath)
		if err != nil {
			// Payload gone: the set can never ship.
			s.removeIfStale(metaPath, now)
			continue
		}
		claimed[meta.Payload] = true

		reports = append(reports, domain.Report{
			Basename:     base,
			MetaPath:     metaPath,
			PayloadPath:  payloadPath,
			PayloadBytes: fi.Size(),
			Meta:         meta,
		})
	}

	// Payloads no meta ever claimed are leftovers from interrupted intakes.
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), payloadSuffix) || claimed[e.Name()] {
			continue
		}
		s.removeIfStale(filepath.Join(s.ReportsDir(), e.Name()), now)
	}

	domain.SortReports(reports)
	return reports, nil
}

func (s *Spool) removeIfStale(path string, now time.Time) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	if now.Sub(fi.ModTime()) > s.orphanAge {
		os.Remove(path)
	}
}

// Remove deletes a report set, meta and payload together.
func (s *Spool) Remove(ctx context.Context, report domain.Report) error {
	var firstErr error
	for _, p := range []string{report.PayloadPath, report.MetaPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Verify recomputes the payload CRC32 and compares it with the meta record.
func (s *Spool) Verify(ctx context.Context, report domain.Report) error {
	data, err := os.ReadFile(report.PayloadPath)
	if err != nil {
		return fmt.Errorf("verify payload: %w", err)
	}
	if sum := crc32.ChecksumIEEE(data); sum != report.Meta.PayloadCRC32 {
		return fmt.Errorf("%w: crc32 %08x, meta has %08x",
			domain.ErrCorruptPayload, sum, report.Meta.PayloadCRC32)
	}
	return nil
}

// TotalBytes returns the on-disk size of everything under reports/.
func (s *Spool) TotalBytes(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(s.ReportsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// ListPending returns pending artifacts oldest-first by modification time.
// Files that do not follow the pending naming scheme are not ours and are
// left alone.
func (s *Spool) ListPending(ctx context.Context) ([]domain.PendingArtifact, error) {
	entries, err := os.ReadDir(s.PendingDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pending: %w", err)
	}

	var pending []domain.PendingArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		exec, pid, created, err := domain.ParsePendingName(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		pending = append(pending, domain.PendingArtifact{
			Path:      filepath.Join(s.PendingDir(), e.Name()),
			Exec:      exec,
			PID:       pid,
			CreatedAt: created,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].ModTime.Equal(pending[j].ModTime) {
			return pending[i].Path < pending[j].Path
		}
		return pending[i].ModTime.Before(pending[j].ModTime)
	})
	return pending, nil
}

// ReadPending returns the contents of a pending artifact.
func (s *Spool) ReadPending(ctx context.Context, artifact domain.PendingArtifact) ([]byte, error) {
	return os.ReadFile(artifact.Path)
}

// RemovePending deletes a pending artifact.
func (s *Spool) RemovePending(ctx context.Context, artifact domain.PendingArtifact) error {
	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteReport finalizes a report set: the payload lands first, then the
// meta appears atomically (temp file + rename) with its done terminator, so
// a concurrent scan never observes a shippable half-written set. Intake
// enforces the per-directory cap by dropping the oldest sets.
func (s *Spool) WriteReport(ctx context.Context, meta domain.Meta, payload []byte) (domain.Report, error) {
	if err := s.EnsureDirs(); err != nil {
		return domain.Report{}, err
	}

	base := domain.ReportBasename(meta.ExecName, meta.CapturedAt, meta.PID)
	payloadName := base + payloadSuffix
	payloadPath := filepath.Join(s.ReportsDir(), payloadName)
	metaPath := filepath.Join(s.ReportsDir(), base+metaSuffix)

	if err := os.WriteFile(payloadPath, payload, 0o600); err != nil {
		return domain.Report{}, fmt.Errorf("write payload: %w", err)
	}

	meta.Payload = payloadName
	meta.Done = true
	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, meta.Encode(), 0o600); err != nil {
		os.Remove(payloadPath)
		return domain.Report{}, fmt.Errorf("write meta: %w", err)
	}
	if err := os.Rename(tmp, metaPath); err != nil {
		os.Remove(tmp)
		os.Remove(payloadPath)
		return domain.Report{}, fmt.Errorf("finalize meta: %w", err)
	}

	if err := s.enforceCap(ctx); err != nil {
		return domain.Report{}, err
	}

	report := domain.Report{
		Basename:     base,
		MetaPath:     metaPath,
		PayloadPath:  payloadPath,
		PayloadBytes: int64(len(payload)),
		Meta:         meta,
	}
	// The new set itself may have been the one over the cap, when it is
	// older than everything already spooled.
	if _, err := os.Stat(metaPath); err != nil {
		return report, fmt.Errorf("report dropped at intake: %w", domain.ErrSpoolFull)
	}
	return report, nil
}

func (s *Spool) enforceCap(ctx context.Context) error {
	reports, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	for len(reports) > s.maxReports {
		if err := s.Remove(ctx, reports[0]); err != nil {
			return err
		}
		reports = reports[1:]
	}
	return nil
}
