package domain

import "time"

// UploadRecord is one completed upload as stored in the ledger. The rolling
// 24h rate window and the status summary are both computed from these rows.
type UploadRecord struct {
	ID           int64
	Basename     string
	ExecName     string
	Sig          string
	PayloadBytes int64
	SentAt       time.Time
}
