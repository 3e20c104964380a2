// Package store holds the PostgreSQL schema shared by the guestpass store
// packages.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_memberships (
		user_id    TEXT NOT NULL REFERENCES users(id),
		project_id TEXT NOT NULL,
		unit       TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL,
		PRIMARY KEY (user_id, project_id)
	)`,
	`CREATE TABLE IF NOT EXISTS project_policies (
		project_id              TEXT PRIMARY KEY,
		block_all_users         BOOLEAN NOT NULL DEFAULT FALSE,
		block_family_members    BOOLEAN NOT NULL DEFAULT FALSE,
		monthly_limit           INTEGER NOT NULL DEFAULT 0,
		validity_duration_hours INTEGER NOT NULL DEFAULT 0,
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS unit_policies (
		project_id     TEXT NOT NULL,
		unit           TEXT NOT NULL,
		blocked        BOOLEAN NOT NULL DEFAULT FALSE,
		blocked_reason TEXT,
		blocked_at     TIMESTAMPTZ,
		monthly_limit  INTEGER,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (project_id, unit)
	)`,
	`CREATE TABLE IF NOT EXISTS user_policies (
		project_id     TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		blocked        BOOLEAN NOT NULL DEFAULT FALSE,
		blocked_reason TEXT,
		blocked_at     TIMESTAMPTZ,
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS unit_usage (
		project_id                TEXT NOT NULL,
		unit                      TEXT NOT NULL,
		period                    TEXT NOT NULL,
		used_this_month           INTEGER NOT NULL DEFAULT 0,
		last_pass_created_by      TEXT,
		last_pass_created_by_name TEXT,
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (project_id, unit, period)
	)`,
	`CREATE TABLE IF NOT EXISTS guest_passes (
		id                 TEXT NOT NULL,
		project_id         TEXT NOT NULL,
		user_id            TEXT NOT NULL,
		user_name          TEXT NOT NULL DEFAULT '',
		unit               TEXT NOT NULL DEFAULT '',
		guest_name         TEXT NOT NULL,
		purpose            TEXT NOT NULL,
		phone_number       TEXT,
		valid_from         TIMESTAMPTZ NOT NULL,
		valid_until        TIMESTAMPTZ NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL,
		sent_status        BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at            TIMESTAMPTZ,
		used               BOOLEAN NOT NULL DEFAULT FALSE,
		used_at            TIMESTAMPTZ,
		verification_token TEXT NOT NULL,
		credential_url     TEXT NOT NULL DEFAULT '',
		deleted            BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (project_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_guest_passes_user_created
		ON guest_passes (project_id, user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_guest_passes_unit_created
		ON guest_passes (project_id, unit, created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id         TEXT PRIMARY KEY,
		action     TEXT NOT NULL,
		project_id TEXT,
		user_id    TEXT,
		pass_id    TEXT,
		timestamp  TIMESTAMPTZ NOT NULL,
		metadata   JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_project
		ON audit_events (project_id, timestamp)`,
}

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
