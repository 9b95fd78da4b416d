package database

import "fmt"

// bootstrapStatements create the tenant-store tables the ingestion pipeline
// reads and writes. The partial unique index on active identified sessions is
// what makes session creation an atomic get-or-create.
var bootstrapStatements = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		domain TEXT NOT NULL,
		organization_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS active_sessions (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		user_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_activity TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_active_sessions_site_user
		ON active_sessions (site_id, user_id)
		WHERE user_id IS NOT NULL AND is_active = 1`,
	`CREATE INDEX IF NOT EXISTS idx_active_sessions_last_activity
		ON active_sessions (last_activity)
		WHERE is_active = 1`,
}

// EnsureSchema creates the required tables and indexes if they do not exist.
func (db *DB) EnsureSchema() error {
	for _, stmt := range bootstrapStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
