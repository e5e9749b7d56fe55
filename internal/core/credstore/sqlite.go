package credstore

import (
	"context"
	"fmt"

	"github.com/neilberkman/fieldhand/internal/core/db"
)

// SQLiteStore keeps credentials in the local client_state table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore wraps an open database. The store does not own it.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (*Credentials, error) {
	vals, err := s.db.LoadState(ctx, KeySessionID, KeyEmail)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	creds, partial := fromValues(vals[KeySessionID], vals[KeyEmail])
	if partial {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
	}
	return creds, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	err := s.db.SaveState(ctx, map[string]string{
		KeySessionID: creds.SessionID,
		KeyEmail:     creds.Email,
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := s.db.DeleteState(ctx, KeySessionID, KeyEmail); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// Close implements Store. The database is closed by its owner.
func (s *SQLiteStore) Close() error {
	return nil
}
