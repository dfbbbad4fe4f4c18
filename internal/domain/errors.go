package domain

import "errors"

// Domain errors represent error conditions in the crashship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("crashship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("crashship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("crashship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("crashship: invalid configuration")

	// ErrContextCanceled is returned when the operation context is canceled.
	ErrContextCanceled = errors.New("crashship: context canceled")

	// ErrNoConsent is returned when crash handling is attempted without consent.
	ErrNoConsent = errors.New("crashship: no consent")

	// ErrMalformedMeta is returned when a meta record cannot be parsed.
	ErrMalformedMeta = errors.New("crashship: malformed meta")

	// ErrIncompleteMeta is returned for a meta missing its done terminator.
	ErrIncompleteMeta = errors.New("crashship: incomplete meta")

	// ErrRateLimited is returned when the rolling send window is exhausted.
	ErrRateLimited = errors.New("crashship: rate limited")

	// ErrSpoolFull is returned when intake drops a set to honor the cap.
	ErrSpoolFull = errors.New("crashship: spool full")

	// ErrReportTooLarge is returned for payloads over the upload limit.
	ErrReportTooLarge = errors.New("crashship: report too large")

	// ErrCorruptPayload is returned when payload verification fails.
	ErrCorruptPayload = errors.New("crashship: corrupt payload")

	// ErrSendPaused is returned when the pause file suppresses sending.
	ErrSendPaused = errors.New("crashship: sending paused")
)
