package ingest

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

// DBFileName is the index database inside the data directory.
const DBFileName = "received.db"

// receivedDirName holds the stored meta and payload files.
const receivedDirName = "received"

const schema = `
CREATE TABLE IF NOT EXISTS received (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	basename    TEXT NOT NULL,
	exec_name   TEXT NOT NULL DEFAULT '',
	sig         TEXT NOT NULL DEFAULT '',
	received_at INTEGER NOT NULL,
	meta_path   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_received_at ON received(received_at);

CREATE TABLE IF NOT EXISTS consent_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id   TEXT NOT NULL,
	granted     INTEGER NOT NULL,
	captured_at INTEGER NOT NULL,
	received_at INTEGER NOT NULL
);
`

// ReceivedReport is one indexed upload, as listed by the API.
type ReceivedReport struct {
	ID         int64     `json:"id"`
	Basename   string    `json:"basename"`
	ExecName   string    `json:"exec_name"`
	Sig        string    `json:"sig"`
	ReceivedAt time.Time `json:"received_at"`
	MetaPath   string    `json:"meta_path"`
}

// ConsentEvent is one consent status change reported by an agent.
type ConsentEvent struct {
	ID         int64     `json:"id"`
	ClientID   string    `json:"client_id"`
	Granted    bool      `json:"granted"`
	CapturedAt time.Time `json:"captured_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// Store persists received reports: meta and payload as files under the data
// directory, plus a sqlite index for listing.
type Store struct {
	db  *sql.DB
	dir string
	mu  sync.RWMutex
}

// OpenStore opens (creating if needed) the store rooted at dir.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, receivedDirName), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFileName))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// Close releases the database handle.
func (st *Store) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.db.Close()
}

// SaveReport stores one uploaded report set and indexes it. The payload
// filename comes from the meta record, reduced to its basename so uploads
// cannot escape the data directory.
func (st *Store) SaveReport(ctx context.Context, basename string, meta domain.Meta, rawMeta, payload []byte) (ReceivedReport, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	metaPath := filepath.Join(st.dir, receivedDirName, basename+".meta")
	payloadName := filepath.Base(meta.Payload)
	if payloadName == "" || payloadName == "." {
		payloadName = basename + ".log"
	}
	payloadPath := filepath.Join(st.dir, receivedDirName, payloadName)

	if err := os.WriteFile(payloadPath, payload, 0o600); err != nil {
		return ReceivedReport{}, fmt.Errorf("store payload: %w", err)
	}
	if err := os.WriteFile(metaPath, rawMeta, 0o600); err != nil {
		os.Remove(payloadPath)
		return ReceivedReport{}, fmt.Errorf("store meta: %w", err)
	}

	rec := ReceivedReport{
		Basename:   basename,
		ExecName:   meta.ExecName,
		Sig:        meta.Sig,
		ReceivedAt: time.Now().UTC(),
		MetaPath:   metaPath,
	}
	res, err := st.db.ExecContext(ctx,
		`INSERT INTO received (basename, exec_name, sig, received_at, meta_path) VALUES (?, ?, ?, ?, ?)`,
		rec.Basename, rec.ExecName, rec.Sig, rec.ReceivedAt.Unix(), rec.MetaPath)
	if err != nil {
		return ReceivedReport{}, fmt.Errorf("index report: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return rec, nil
}

// List returns up to limit received reports, most recent first.
func (st *Store) List(ctx context.Context, limit int) ([]ReceivedReport, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	rows, err := st.db.QueryContext(ctx,
		`SELECT id, basename, exec_name, sig, received_at, meta_path
		 FROM received ORDER BY received_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query received: %w", err)
	}
	defer rows.Close()

	var recs []ReceivedReport
	for rows.Next() {
		var rec ReceivedReport
		var receivedAt int64
		if err := rows.Scan(&rec.ID, &rec.Basename, &rec.ExecName, &rec.Sig, &receivedAt, &rec.MetaPath); err != nil {
			return nil, fmt.Errorf("scan received row: %w", err)
		}
		rec.ReceivedAt = time.Unix(receivedAt, 0).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SaveConsentEvent records one consent status change.
func (st *Store) SaveConsentEvent(ctx context.Context, event ConsentEvent) (ConsentEvent, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	event.ReceivedAt = time.Now().UTC()
	granted := 0
	if event.Granted {
		granted = 1
	}
	res, err := st.db.ExecContext(ctx,
		`INSERT INTO consent_events (client_id, granted, captured_at, received_at) VALUES (?, ?, ?, ?)`,
		event.ClientID, granted, event.CapturedAt.Unix(), event.ReceivedAt.Unix())
	if err != nil {
		return ConsentEvent{}, fmt.Errorf("index consent event: %w", err)
	}
	event.ID, _ = res.LastInsertId()
	return event, nil
}

// ConsentEvents returns up to limit consent events, most recent first.
func (st *Store) ConsentEvents(ctx context.Context, limit int) ([]ConsentEvent, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	rows, err := st.db.QueryContext(ctx,
		`SELECT id, client_id, granted, captured_at, received_at
		 FROM consent_events ORDER BY received_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query consent events: %w", err)
	}
	defer rows.Close()

	var events []ConsentEvent
	for rows.Next() {
		var event ConsentEvent
		var granted int
		var capturedAt, receivedAt int64
		if err := rows.Scan(&event.ID, &event.ClientID, &granted, &capturedAt, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan consent row: %w", err)
		}
		event.Granted = granted != 0
		event.CapturedAt = time.Unix(capturedAt, 0).UTC()
		event.ReceivedAt = time.Unix(receivedAt, 0).UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
