// Package credstore persists the session token and email between runs.
package credstore

import (
	"context"
	"errors"
)

// Common errors for credential store operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrIncomplete       = errors.New("credentials must carry both session id and email")
)

// Well-known keys. The two are always written and cleared together.
const (
	KeySessionID = "session_id"
	KeyEmail     = "email"
)

// Credentials is the durable half of a session.
type Credentials struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if c.SessionID == "" || c.Email == "" {
		return ErrIncomplete
	}
	return nil
}

// Store defines the storage port for persisted credentials.
type Store interface {
	// Load returns the persisted credentials, or nil if none are stored.
	// A half-written pair (one key without the other) is treated as absent
	// and removed.
	Load(ctx context.Context) (*Credentials, error)

	// Save writes both keys atomically.
	Save(ctx context.Context, creds Credentials) error

	// Clear removes both keys atomically.
	Clear(ctx context.Context) error

	// Close releases any resources.
	Close() error
}

// fromValues applies the half-written rule shared by every driver. The
// bool result reports whether a partial pair was found and needs clearing.
func fromValues(sessionID, email string) (*Credentials, bool) {
	switch {
	case sessionID != "" && email != "":
		return &Credentials{SessionID: sessionID, Email: email}, false
	case sessionID == "" && email == "":
		return nil, false
	default:
		return nil, true
	}
}
