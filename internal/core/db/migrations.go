package db

import (
	"fmt"
)

// runMigrations applies database migrations for existing databases
func (db *DB) runMigrations() error {
	// Migration 1: early builds created client_state without updated_at
	if err := db.migration001AddUpdatedAt(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	return nil
}

// migration001AddUpdatedAt adds the updated_at column to client_state
func (db *DB) migration001AddUpdatedAt() error {
	var hasUpdatedAt bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('client_state')
		WHERE name='updated_at'
	`).Scan(&hasUpdatedAt)
	if err != nil {
		return err
	}

	if hasUpdatedAt {
		return nil
	}

	// SQLite rejects non-constant defaults in ADD COLUMN, so backfill instead
	if _, err := db.conn.Exec(`ALTER TABLE client_state ADD COLUMN updated_at DATETIME;`); err != nil {
		return fmt.Errorf("add updated_at column: %w", err)
	}
	if _, err := db.conn.Exec(`UPDATE client_state SET updated_at = CURRENT_TIMESTAMP WHERE updated_at IS NULL;`); err != nil {
		return fmt.Errorf("backfill updated_at: %w", err)
	}

	return nil
}
