package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the prices table and its indexes. No uniqueness is
// enforced on (ticker, "timestamp"): overlapping poll runs may store the
// same observation twice.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS prices (
		id               BIGSERIAL PRIMARY KEY,
		ticker           VARCHAR(20)    NOT NULL,
		price            NUMERIC(20, 8) NOT NULL CHECK (price >= 0),
		"timestamp"      BIGINT         NOT NULL CHECK ("timestamp" >= 0),
		source_timestamp BIGINT,
		created_at       TIMESTAMPTZ    NOT NULL DEFAULT now(),
		CONSTRAINT prices_ticker_format CHECK (ticker ~ '^(btc|eth)[-_][a-z0-9]{2,15}$')
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prices_ticker_timestamp ON prices (ticker, "timestamp" DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_prices_created_at ON prices (created_at DESC)`,
}

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
