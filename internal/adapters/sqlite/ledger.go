package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spoolworks/crashship/internal/domain"
)

// LedgerFileName is the database filename inside the state directory.
const LedgerFileName = "uploads.db"

const schema = `
CREATE TABLE IF NOT EXISTS uploads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	basename      TEXT NOT NULL,
	exec_name     TEXT NOT NULL,
	sig           TEXT NOT NULL DEFAULT '',
	payload_bytes INTEGER NOT NULL DEFAULT 0,
	sent_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_sent_at ON uploads(sent_at);
`

// Ledger implements ports.UploadLedger on an embedded sqlite database. One
// row per completed upload; the rolling rate window and the status summary
// are queries over sent_at.
type Ledger struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the ledger database in dir.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	path := filepath.Join(dir, LedgerFileName)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

// RecordUpload appends one completed upload.
func (l *Ledger) RecordUpload(ctx context.Context, rec domain.UploadRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO uploads (basename, exec_name, sig, payload_bytes, sent_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Basename, rec.ExecName, rec.Sig, rec.PayloadBytes, sentAt.Unix())
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// CountSince returns the number of uploads recorded at or after t.
func (l *Ledger) CountSince(ctx context.Context, t time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM uploads WHERE sent_at >= ?`, t.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	return n, nil
}

// BytesSince returns the payload bytes uploaded at or after t.
func (l *Ledger) BytesSince(ctx context.Context, t time.Time) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total sql.NullInt64
	err := l.db.QueryRowContext(ctx,
		`SELECT SUM(payload_bytes) FROM uploads WHERE sent_at >= ?`, t.Unix()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum upload bytes: %w", err)
	}
	return total.Int64, nil
}

// Recent returns up to n most recent uploads, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]domain.UploadRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, basename, exec_name, sig, payload_bytes, sent_at
		 FROM uploads ORDER BY sent_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent uploads: %w", err)
	}
	defer rows.Close()

	var recs []domain.UploadRecord
	for rows.Next() {
		var rec domain.UploadRecord
		var sentAt int64
		if err := rows.Scan(&rec.ID, &rec.Basename, &rec.ExecName, &rec.Sig, &rec.PayloadBytes, &sentAt); err != nil {
			return nil, fmt.Errorf("scan upload row: %w", err)
		}
		rec.SentAt = time.Unix(sentAt, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Prune removes records older than age and reports how many went.
func (l *Ledger) Prune(ctx context.Context, age time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-age).Unix()
	res, err := l.db.ExecContext(ctx, `DELETE FROM uploads WHERE sent_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune uploads: %w", err)
	}
	return res.RowsAffected()
}
