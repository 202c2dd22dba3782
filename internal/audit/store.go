// Package audit records who changed the feed and how, and renders
// human-readable diffs between published documents.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/ipfeed/internal/clock"
)

// Event is one audit row. Each successful publish writes one event.
type Event struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Operation string         `json:"operation"`
	Batch     string         `json:"batch,omitempty"`
	Version   uint64         `json:"version"`
	Previous  uint64         `json:"previous,omitempty"`
	Added     int            `json:"added"`
	Removed   int            `json:"removed"`
	Checksum  string         `json:"checksum"`
	Details   map[string]any `json:"details,omitempty"`
}

// Filter narrows Query. Zero values match everything.
type Filter struct {
	Since     time.Time
	Until     time.Time
	Operation string
	Limit     int
}

// Store provides persistent storage for audit events.
type Store struct {
	mu            sync.RWMutex
	db            *sql.DB
	clock         clock.Clock
	retentionDays int
}

// NewStore creates a new audit store at dbPath. ":memory:" keeps the log in RAM.
func NewStore(dbPath string, retentionDays int, clk clock.Clock) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			operation TEXT NOT NULL,
			batch TEXT,
			version INTEGER NOT NULL,
			previous INTEGER NOT NULL DEFAULT 0,
			added INTEGER NOT NULL DEFAULT 0,
			removed INTEGER NOT NULL DEFAULT 0,
			checksum TEXT NOT NULL,
			details TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts);
		CREATE INDEX IF NOT EXISTS idx_audit_operation ON audit_events(operation);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	if retentionDays <= 0 {
		retentionDays = 90
	}

	return &Store{
		db:            db,
		clock:         clock.OrReal(clk),
		retentionDays: retentionDays,
	}, nil
}

// Record persists an audit event. A zero timestamp is filled from the clock.
func (s *Store) Record(ctx context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.clock.Now()
	}

	var detailsJSON []byte
	if evt.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(evt.Details)
		if err != nil {
			detailsJSON = []byte("{}")
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (ts, operation, batch, version, previous, added, removed, checksum, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, evt.Timestamp.UnixNano(), evt.Operation, evt.Batch, evt.Version, evt.Previous,
		evt.Added, evt.Removed, evt.Checksum, string(detailsJSON))
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, ts, operation, batch, version, previous, added, removed, checksum, details
		FROM audit_events WHERE 1 = 1`
	var args []any

	if !f.Since.IsZero() {
		query += " AND ts >= ?"
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		query += " AND ts <= ?"
		args = append(args, f.Until.UnixNano())
	}
	if f.Operation != "" {
		query += " AND operation = ?"
		args = append(args, f.Operation)
	}

	query += " ORDER BY ts DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt         Event
			ts          int64
			batch       sql.NullString
			detailsJSON sql.NullString
		)
		err := rows.Scan(&evt.ID, &ts, &evt.Operation, &batch, &evt.Version, &evt.Previous,
			&evt.Added, &evt.Removed, &evt.Checksum, &detailsJSON)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		evt.Timestamp = time.Unix(0, ts).UTC()
		evt.Batch = batch.String
		if detailsJSON.Valid && detailsJSON.String != "" {
			_ = json.Unmarshal([]byte(detailsJSON.String), &evt.Details)
		}
		events = append(events, evt)
	}

	return events, rows.Err()
}

// Prune removes events older than the retention period.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE ts < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}

	return result.RowsAffected()
}

// Count returns the total number of events in the store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
