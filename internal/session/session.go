// Package session persists per-client authentication state keyed by an opaque session ID.
package session

import (
	"context"
	"errors"

	"github.com/and161185/nevi/internal/crypto"
	"github.com/gofrs/uuid/v5"
)

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("session store unavailable")

// Data is the state stored for one session.
type Data struct {
	LoggedIn    bool      `json:"logged_in"`
	UserID      uuid.UUID `json:"user_id"`
	MFARequired bool      `json:"mfa_required"`

	// RememberPending holds a remember-me request until the MFA gate is cleared.
	RememberPending bool `json:"remember_pending,omitempty"`
}

// Store loads and saves session data. A missing session loads as the zero Data.
type Store interface {
	Load(ctx context.Context, id string) (Data, bool, error)
	Save(ctx context.Context, id string, d Data) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh 256-bit session identifier.
func NewID() (string, error) { return crypto.RandHex(32) }
