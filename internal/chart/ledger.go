package chart

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run ledger statuses. An empty leaderboard is a valid outcome, but
// operators need to know whether the window held no snapshots at all or
// whether the filters removed everything that was there.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "empty_insufficient_data"
	StatusEmptyFiltered    = "empty_filtered"
)

// RunRecord is one row of the run ledger.
type RunRecord struct {
	Window         Window
	StartedAt      time.Time
	FinishedAt     time.Time
	ChannelsOK     int
	ChannelsFailed int
	Items          int
	Status         string
}

// RunLedger records run outcomes in a local SQLite database.
type RunLedger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database.
func OpenLedger(path string) (*RunLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("ledger: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		window          TEXT NOT NULL,
		started_at      TEXT NOT NULL,
		finished_at     TEXT NOT NULL,
		channels_ok     INTEGER NOT NULL DEFAULT 0,
		channels_failed INTEGER NOT NULL DEFAULT 0,
		items           INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &RunLedger{db: db}, nil
}

// Record appends one run outcome.
func (l *RunLedger) Record(ctx context.Context, r RunRecord) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (window, started_at, finished_at, channels_ok, channels_failed, items, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.Window),
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
		r.ChannelsOK, r.ChannelsFailed, r.Items, r.Status,
	)
	if err != nil {
		return fmt.Errorf("ledger: record run: %w", err)
	}
	return nil
}

// Recent returns the latest n run records, newest first.
func (l *RunLedger) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT window, started_at, finished_at, channels_ok, channels_failed, items, status
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var w, started, finished string
		if err := rows.Scan(&w, &started, &finished, &r.ChannelsOK, &r.ChannelsFailed, &r.Items, &r.Status); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		r.Window = Window(w)
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *RunLedger) Close() error { return l.db.Close() }
