package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib" // register pgx driver
	"github.com/jmoiron/sqlx"
)

// PostgresSchema creates the tables the postgres backend expects.
const PostgresSchema = `
CREATE SEQUENCE IF NOT EXISTS feed_version_seq;

CREATE TABLE IF NOT EXISTS feed_snapshots (
	version BIGINT PRIMARY KEY,
	payload BYTEA NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresBackend stores snapshots in PostgreSQL. Versions come from a
// database sequence so several restarts never reuse a number.
type PostgresBackend struct {
	db *sqlx.DB
}

type snapshotRow struct {
	Version int64  `db:"version"`
	Payload []byte `db:"payload"`
}

// NewPostgresBackend connects, tunes the pool and applies the schema.
func NewPostgresBackend(ctx context.Context, dsn string, pool PoolOptions) (*PostgresBackend, error) {
	db, err := OpenDB(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if _, err := db.ExecContext(ctx, PostgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresBackend{db: db}, nil
}

// OpenDB opens and pings a pgx connection.
func OpenDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres backend: empty DSN")
	}
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *PostgresBackend) Load(ctx context.Context, version uint64) ([]byte, error) {
	const query = `
	SELECT version, payload
	FROM feed_snapshots
	WHERE version = $1`
	var row snapshotRow
	err := p.db.GetContext(ctx, &row, query, int64(version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(version)
	}
	if err != nil {
		return nil, err
	}
	return row.Payload, nil
}

func (p *PostgresBackend) Save(ctx context.Context, version uint64, data []byte) error {
	const query = `
	INSERT INTO feed_snapshots (version, payload)
	VALUES (:version, :payload)
	ON CONFLICT (version) DO UPDATE SET payload = EXCLUDED.payload`
	_, err := p.db.NamedExecContext(ctx, query, snapshotRow{Version: int64(version), Payload: data})
	return err
}

func (p *PostgresBackend) ListVersions(ctx context.Context) ([]uint64, error) {
	const query = `
	SELECT version
	FROM feed_snapshots
	ORDER BY version`
	var raw []int64
	if err := p.db.SelectContext(ctx, &raw, query); err != nil {
		return nil, err
	}
	out := make([]uint64, len(raw))
	for i, v := range raw {
		out[i] = uint64(v)
	}
	return out, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, version uint64) error {
	const query = `
	DELETE FROM feed_snapshots
	WHERE version = $1`
	res, err := p.db.ExecContext(ctx, query, int64(version))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(version)
	}
	return nil
}

func (p *PostgresBackend) NextVersion(ctx context.Context) (uint64, error) {
	var next int64
	if err := p.db.GetContext(ctx, &next, "SELECT nextval('feed_version_seq')"); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

func (p *PostgresBackend) Close() error {
	return p.db.Close()
}
