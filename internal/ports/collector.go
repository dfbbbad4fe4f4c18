package ports

import (
	"context"

	"github.com/spoolworks/crashship/internal/domain"
)

// CrashCollector turns raw crash artifacts into finalized report sets.
type CrashCollector interface {
	// Sweep processes every pending artifact once and returns how many
	// report sets it finalized.
	Sweep(ctx context.Context) (int, error)

	// Finalize turns one raw crash into a report set, applying the
	// consent and filter gates. Returns domain.ErrNoConsent when consent
	// is absent.
	Finalize(ctx context.Context, crash domain.RawCrash) (domain.Report, error)
}
