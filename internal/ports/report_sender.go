package ports

import (
	"context"

	"github.com/spoolworks/crashship/internal/domain"
)

// ReportSender transmits finalized report sets to the ingestion service.
// Implementations handle serialization, HTTP communication, and authentication.
type ReportSender interface {
	// Send uploads one report set to the remote service.
	// Returns nil on success, error on failure. The caller decides
	// whether to retry; the report must never be deleted on failure.
	Send(ctx context.Context, report domain.Report, metadata SendMetadata) error
}

// SendMetadata provides context for the send operation.
// This information is included in HTTP headers for server-side tracking.
type SendMetadata struct {
	// Hostname is the agent's hostname
	Hostname string

	// OSArch is the operating system and architecture (e.g., "linux/amd64")
	OSArch string

	// ClientID is the stable reporting id from the consent record
	ClientID string

	// AuthKey is the API authentication key
	AuthKey string

	// ServiceURL is the base URL of the ingestion service
	ServiceURL string
}
