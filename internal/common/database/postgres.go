// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// schemaStatements creates the listing, featured and conversation tables.
// Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id             UUID PRIMARY KEY,
		title          TEXT NOT NULL,
		company        TEXT NOT NULL DEFAULT '',
		location       TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		skills         TEXT[] NOT NULL DEFAULT '{}',
		pay_min        INTEGER,
		pay_max        INTEGER,
		apprenticeship BOOLEAN NOT NULL DEFAULT FALSE,
		external_url   TEXT UNIQUE,
		apply_url      TEXT NOT NULL DEFAULT '',
		featured       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS programs (
		id           UUID PRIMARY KEY,
		school       TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL,
		location     TEXT NOT NULL DEFAULT '',
		delivery     TEXT NOT NULL DEFAULT 'in-person',
		length_weeks INTEGER,
		cost         INTEGER,
		certs        TEXT[] NOT NULL DEFAULT '{}',
		start_date   DATE,
		url          TEXT NOT NULL DEFAULT '',
		external_url TEXT UNIQUE,
		description  TEXT NOT NULL DEFAULT '',
		featured     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS featured (
		id            UUID PRIMARY KEY,
		kind          TEXT NOT NULL CHECK (kind IN ('job', 'program')),
		ref_id        UUID NOT NULL,
		category_hint TEXT NOT NULL DEFAULT '',
		metro_hint    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		messages   JSONB NOT NULL DEFAULT '[]',
		provider   TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS conversations_user_updated_idx ON conversations (user_id, updated_at DESC)`,
}

// Bootstrap applies the schema inside one transaction.
func (c *PostgresClient) Bootstrap(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema bootstrap: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}
