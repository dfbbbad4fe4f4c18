package domain

import "time"

// State is the agent's persistent progress record, written atomically to
// agent-status.json after every pass so a restarted agent can report where
// the previous instance left off.
type State struct {
	// LastSweep is when the collector last finished a pending sweep.
	LastSweep time.Time `json:"last_sweep"`

	// LastSend is when a report was last uploaded successfully.
	LastSend time.Time `json:"last_send"`

	// LastSendError holds the most recent send failure, "" after success.
	LastSendError string `json:"last_send_error,omitempty"`

	// LastBasename is the basename of the last uploaded report.
	LastBasename string `json:"last_basename,omitempty"`

	// TotalCollected counts report sets finalized since state creation.
	TotalCollected uint64 `json:"total_collected"`

	// TotalSent counts successful uploads since state creation.
	TotalSent uint64 `json:"total_sent"`

	// TotalSentBytes counts payload bytes uploaded since state creation.
	TotalSentBytes uint64 `json:"total_sent_bytes"`

	// TotalDropped counts reports dropped without upload (oversize,
	// corrupt, over cap).
	TotalDropped uint64 `json:"total_dropped"`
}
