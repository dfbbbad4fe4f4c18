package ports

import (
	"context"

	"github.com/spoolworks/crashship/internal/domain"
)

// ReportSpool provides access to finalized crash report sets on disk.
// Implementations scan the reports directory and interpret meta records.
type ReportSpool interface {
	// Scan returns all shippable report sets ordered oldest-first.
	// Sets whose meta lacks the done terminator or whose payload is
	// missing are skipped, not returned as errors.
	Scan(ctx context.Context) ([]domain.Report, error)

	// Remove deletes a report set, meta and payload together.
	Remove(ctx context.Context, report domain.Report) error

	// Verify recomputes the payload checksum and compares it with the
	// meta record, returning ErrCorruptPayload on mismatch.
	Verify(ctx context.Context, report domain.Report) error

	// TotalBytes returns the on-disk size of all finalized sets.
	TotalBytes(ctx context.Context) (int64, error)
}

// PendingSpool provides access to the raw crash sinks written by crashing
// processes, and the intake path that turns them into report sets.
type PendingSpool interface {
	// ListPending returns pending artifacts ordered oldest-first.
	// Files that do not follow the pending naming scheme are ignored.
	ListPending(ctx context.Context) ([]domain.PendingArtifact, error)

	// ReadPending returns the contents of a pending artifact.
	ReadPending(ctx context.Context, artifact domain.PendingArtifact) ([]byte, error)

	// RemovePending deletes a pending artifact.
	RemovePending(ctx context.Context, artifact domain.PendingArtifact) error

	// WriteReport finalizes a report set from a complete meta and its
	// payload, enforcing the per-directory cap on finalized sets.
	WriteReport(ctx context.Context, meta domain.Meta, payload []byte) (domain.Report, error)
}
