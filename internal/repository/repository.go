// Package repository is the Postgres persistence layer. Missing rows are
// reported as lifecycle.ErrNotFound so callers never see pgx sentinels.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tanishk31/visiting-management/internal/lifecycle"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.ErrNotFound
	}
	return err
}

// EnsureSchema creates the tables on startup when they do not exist yet.
// host_id is nullable: rows migrated from the name-keyed schema carry only
// host_name.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             text PRIMARY KEY,
			name           text NOT NULL,
			email          text NOT NULL UNIQUE,
			password_hash  text NOT NULL,
			role           text NOT NULL,
			department     text NOT NULL DEFAULT '',
			contact_number text NOT NULL DEFAULT '',
			status         text NOT NULL DEFAULT 'active',
			created_at     timestamptz NOT NULL,
			updated_at     timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS users_host_name_idx ON users (lower(name)) WHERE role = 'host'`,
		`CREATE TABLE IF NOT EXISTS refresh_token_sessions (
			id         text PRIMARY KEY,
			user_id    text NOT NULL REFERENCES users (id),
			token_hash text NOT NULL UNIQUE,
			created_at timestamptz NOT NULL,
			expires_at timestamptz NOT NULL,
			revoked_at timestamptz,
			user_agent text,
			ip_address text
		)`,
		`CREATE TABLE IF NOT EXISTS visits (
			id              text PRIMARY KEY,
			host_id         text REFERENCES users (id),
			host_name       text NOT NULL DEFAULT '',
			visitor_id      text NOT NULL DEFAULT '',
			visitor_name    text NOT NULL DEFAULT '',
			visitor_email   text NOT NULL DEFAULT '',
			visitor_contact text NOT NULL DEFAULT '',
			purpose         text NOT NULL DEFAULT '',
			company         text NOT NULL DEFAULT '',
			photo_key       text NOT NULL DEFAULT '',
			requested_at    timestamptz NOT NULL,
			check_in        timestamptz,
			check_out       timestamptz,
			start_time      timestamptz,
			end_time        timestamptz,
			qr_id           text NOT NULL DEFAULT '',
			qr_pass         text NOT NULL DEFAULT '',
			status          text NOT NULL,
			created_at      timestamptz NOT NULL,
			updated_at      timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS visits_host_idx ON visits (host_id, status)`,
		`CREATE INDEX IF NOT EXISTS visits_visitor_idx ON visits (visitor_id)`,
		`CREATE INDEX IF NOT EXISTS visits_requested_idx ON visits (requested_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
