package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	constraintCardUnique  = "identities_card_id_key"
	constraintOneOpenSess = "sessions_one_open_per_employee"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id          BIGSERIAL PRIMARY KEY,
		card_id     TEXT NOT NULL CHECK (card_id <> ''),
		employee_id TEXT NOT NULL CHECK (employee_id <> ''),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + constraintCardUnique + ` UNIQUE (card_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id            BIGSERIAL PRIMARY KEY,
		employee_id   TEXT NOT NULL CHECK (employee_id <> ''),
		check_in      TIMESTAMPTZ NOT NULL,
		check_in_raw  TIMESTAMPTZ NOT NULL,
		check_out     TIMESTAMPTZ,
		check_out_raw TIMESTAMPTZ,
		CHECK (check_out IS NULL OR check_out >= check_in)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintOneOpenSess + `
		ON sessions (employee_id) WHERE check_out IS NULL`,
	`CREATE INDEX IF NOT EXISTS sessions_employee_idx ON sessions (employee_id, id)`,
	`CREATE INDEX IF NOT EXISTS sessions_check_in_idx ON sessions (check_in)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}
