// Package postgres opens the SQL connection pool used by the postgres
// linkage backend and applies its schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

// Schema creates the linkage and audit tables. Both linkage indexes are
// unique so the database enforces one address per principal and one
// principal per address.
const Schema = `
CREATE TABLE IF NOT EXISTS principal_scores (
	principal    BYTEA PRIMARY KEY,
	address_hash BYTEA NOT NULL UNIQUE,
	score        DOUBLE PRECISION NOT NULL,
	linked_at    TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id           UUID PRIMARY KEY,
	action       TEXT NOT NULL,
	principal    TEXT NOT NULL,
	timestamp    TIMESTAMPTZ NOT NULL,
	request_id   TEXT,
	client_agent TEXT,
	detail       JSONB
);

CREATE INDEX IF NOT EXISTS audit_events_principal_idx ON audit_events (principal, timestamp);
`

// Open connects with the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// Migrate applies Schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
