// Package sqlite persists store snapshots in a SQLite database, one JSON
// document per collection, written in a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	appLog "venueops/internal/log"
	"venueops/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_buckets (
	bucket     TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

const upsertBucket = `
INSERT INTO snapshot_buckets (bucket, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

// Persister implements store.Persister.
type Persister struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(ctx context.Context, path string) (*Persister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	appLog.Info("sqlite snapshot store ready", "path", path)
	return &Persister{db: db}, nil
}

// Close releases the database handle.
func (p *Persister) Close() error {
	return p.db.Close()
}

func buckets(snap *store.Snapshot) map[string]any {
	return map[string]any{
		"events":    &snap.Events,
		"meetings":  &snap.Meetings,
		"members":   &snap.Members,
		"rooms":     &snap.Rooms,
		"bookings":  &snap.Bookings,
		"tickets":   &snap.Tickets,
		"protocols": &snap.Protocols,
		"signals":   &snap.Signals,
		"tasks":     &snap.Tasks,
	}
}

// Save writes every collection or none.
func (p *Persister) Save(ctx context.Context, snap store.Snapshot) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				appLog.Error("sqlite rollback failed", rbErr)
			}
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for name, v := range buckets(&snap) {
		payload, mErr := json.Marshal(v)
		if mErr != nil {
			return fmt.Errorf("sqlite: encode %s: %w", name, mErr)
		}
		if _, err = tx.ExecContext(ctx, upsertBucket, name, string(payload), now); err != nil {
			return fmt.Errorf("sqlite: write %s: %w", name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot. ok is false when nothing was saved yet.
func (p *Persister) Load(ctx context.Context) (snap store.Snapshot, ok bool, err error) {
	rows, err := p.db.QueryContext(ctx, `SELECT bucket, payload FROM snapshot_buckets`)
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	targets := buckets(&snap)
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return store.Snapshot{}, false, fmt.Errorf("sqlite: scan: %w", err)
		}
		target, known := targets[name]
		if !known {
			appLog.Warn("ignoring unknown snapshot bucket", "bucket", name)
			continue
		}
		if err := json.Unmarshal([]byte(payload), target); err != nil {
			return store.Snapshot{}, false, fmt.Errorf("sqlite: decode %s: %w", name, err)
		}
		ok = true
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, false, fmt.Errorf("sqlite: rows: %w", err)
	}
	return snap, ok, nil
}

var _ store.Persister = (*Persister)(nil)
