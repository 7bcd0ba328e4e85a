package migrations

import (
	"context"
	"database/sql"
)

// registry lists every schema step in ascending version order.
// Append only: released versions must never be edited or reordered.
var registry = []Step{
	{Version: 1, Description: "create users table", Apply: createUsersTable},
	{Version: 2, Description: "create sessions table", Apply: createSessionsTable},
	{Version: 3, Description: "create settings table with proxy auth defaults", Apply: createSettingsTable},
	{Version: 4, Description: "index sessions by expiry and owner", Apply: indexSessions},
}

// Registry returns a copy of the registered steps
func Registry() []Step {
	steps := make([]Step, len(registry))
	copy(steps, registry)
	return steps
}

// ExpectedVersion is the schema version this binary runs against
func ExpectedVersion() int64 {
	return registry[len(registry)-1].Version
}

func execAll(ctx context.Context, tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createUsersTable(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			email         TEXT,
			password_hash TEXT,
			group_name    TEXT NOT NULL DEFAULT 'user',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login_at TIMESTAMPTZ,
			CONSTRAINT users_username_key UNIQUE (username),
			CONSTRAINT users_username_not_blank CHECK (btrim(username) <> '')
		)
	`)
}

func createSessionsTable(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx, `
		CREATE TABLE IF NOT EXISTS sessions (
			token_hash TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			ip_address TEXT,
			user_agent TEXT,
			CONSTRAINT sessions_expiry_after_creation CHECK (expires_at > created_at)
		)
	`)
}

func createSettingsTable(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		INSERT INTO settings (key, value) VALUES
			('proxy_auth.enabled', 'false'),
			('proxy_auth.username_header', 'X-authentik-username'),
			('proxy_auth.email_header', 'X-authentik-email'),
			('proxy_auth.whitelist', ''),
			('default_group', 'user')
		ON CONFLICT (key) DO NOTHING
		`,
	)
}

func indexSessions(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at)`,
		`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions (user_id)`,
	)
}
