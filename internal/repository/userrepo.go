// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/nevi/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to user records.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByRememberToken loads the user currently holding token.
	GetByRememberToken(ctx context.Context, token string) (*model.User, error)
	// SetRememberToken overwrites the user's remember token ("" clears it).
	SetRememberToken(ctx context.Context, id uuid.UUID, token string) error
	// SwapRememberToken replaces old with token only if old is still the stored value.
	SwapRememberToken(ctx context.Context, id uuid.UUID, old, token string) error
	// SetRecoveryToken stores a password recovery token on the account owning email.
	SetRecoveryToken(ctx context.Context, email, token string) error
	// UsernamesByID resolves usernames for the given IDs; unknown IDs are absent from the result.
	UsernamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}
