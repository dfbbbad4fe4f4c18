package ports

import (
	"context"
	"time"

	"github.com/spoolworks/crashship/internal/domain"
)

// UploadLedger records completed uploads and answers the rolling-window
// questions the rate limiter asks.
type UploadLedger interface {
	// RecordUpload appends one completed upload.
	RecordUpload(ctx context.Context, rec domain.UploadRecord) error

	// CountSince returns the number of uploads recorded at or after t.
	CountSince(ctx context.Context, t time.Time) (int, error)

	// BytesSince returns the payload bytes uploaded at or after t.
	BytesSince(ctx context.Context, t time.Time) (int64, error)

	// Recent returns up to n most recent uploads, newest first.
	Recent(ctx context.Context, n int) ([]domain.UploadRecord, error)

	// Prune removes records older than age and reports how many went.
	Prune(ctx context.Context, age time.Duration) (int64, error)

	// Close releases the underlying store.
	Close() error
}
