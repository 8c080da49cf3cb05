package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the Postgres connection pool
type DB struct {
	*sql.DB
}

// New opens and verifies a Postgres connection
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS wardrobe_items (
	session_id    TEXT        NOT NULL,
	position      INTEGER     NOT NULL,
	id            UUID        NOT NULL,
	image_ref     TEXT        NOT NULL,
	category      TEXT        NOT NULL,
	color         TEXT        NOT NULL,
	fabric        TEXT        NOT NULL,
	occasion_tags TEXT[]      NOT NULL DEFAULT '{}',
	attributes    JSONB       NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE INDEX IF NOT EXISTS wardrobe_items_session_position ON wardrobe_items (session_id, position);
`

// Migrate creates the wardrobe tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
