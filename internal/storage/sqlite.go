package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"grimm.is/ipfeed/internal/clock"
)

// SQLiteBackend stores snapshots in a single SQLite database.
type SQLiteBackend struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteBackend opens (or creates) the database at path. Use ":memory:"
// for an ephemeral database.
func NewSQLiteBackend(ctx context.Context, path string, clk clock.Clock) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite backend: empty path")
	}
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every :memory: connection is its own database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &SQLiteBackend{db: db, clock: clock.OrReal(clk)}
	if err := b.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS snapshots (
			version INTEGER PRIMARY KEY,
			payload BLOB NOT NULL,
			saved_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sequence (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO sequence (id, last) VALUES (1, 0);
	`
	_, err := b.db.ExecContext(ctx, schema)
	return err
}

func (b *SQLiteBackend) Load(ctx context.Context, version uint64) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE version = ?", version).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(version)
	}
	return data, err
}

func (b *SQLiteBackend) Save(ctx context.Context, version uint64, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (version, payload, saved_at) VALUES (?, ?, ?)",
		version, data, b.clock.Now().UTC())
	return err
}

func (b *SQLiteBackend) ListVersions(ctx context.Context) ([]uint64, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT version FROM snapshots ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var v uint64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Delete(ctx context.Context, version uint64) error {
	res, err := b.db.ExecContext(ctx, "DELETE FROM snapshots WHERE version = ?", version)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(version)
	}
	return nil
}

// NextVersion bumps the persisted counter in its own transaction.
func (b *SQLiteBackend) NextVersion(ctx context.Context) (uint64, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE sequence SET last = last + 1 WHERE id = 1"); err != nil {
		return 0, err
	}
	var next uint64
	if err := tx.QueryRowContext(ctx, "SELECT last FROM sequence WHERE id = 1").Scan(&next); err != nil {
		return 0, err
	}
	return next, tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
