package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/model"
	rs "github.com/and161185/nevi/internal/recordstore"
	"github.com/gofrs/uuid/v5"
)

// UserRepo implements UserRepository on the record store.
type UserRepo struct{ store *rs.Store }

// NewUserRepo constructs a user repository.
func NewUserRepo(store *rs.Store) *UserRepo { return &UserRepo{store: store} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	return r.store.Insert(ctx, usersTable,
		[]rs.Column{colID, colUsername, colPassword, colEmail, colFirstName, colLastName, colMFARequired, colTOTPSecret},
		[]any{u.ID, u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName, u.MFARequired, u.TOTPSecret},
	)
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.fetch(ctx, rs.Eq(colID, id))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.fetch(ctx, rs.Eq(colUsername, username))
}

// GetByRememberToken selects the user whose remember token equals token.
func (r *UserRepo) GetByRememberToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, errs.ErrNotFound
	}
	return r.fetch(ctx, rs.Eq(colRememberToken, token))
}

func (r *UserRepo) fetch(ctx context.Context, where rs.Cond) (*model.User, error) {
	row, err := r.store.FetchOne(ctx, usersTable, userColumns, where)
	if err != nil {
		return nil, err
	}
	return userFromRow(row)
}

func userFromRow(row rs.Row) (*model.User, error) {
	id, err := uuidOf(row[string(colID)])
	if err != nil {
		return nil, fmt.Errorf("users.id: %w", err)
	}
	return &model.User{
		ID:            id,
		Username:      str(row[string(colUsername)]),
		PasswordHash:  str(row[string(colPassword)]),
		RememberToken: str(row[string(colRememberToken)]),
		RecoveryToken: str(row[string(colRecoveryToken)]),
		Email:         str(row[string(colEmail)]),
		FirstName:     str(row[string(colFirstName)]),
		LastName:      str(row[string(colLastName)]),
		MFARequired:   boolean(row[string(colMFARequired)]),
		TOTPSecret:    str(row[string(colTOTPSecret)]),
	}, nil
}

// SetRememberToken overwrites remember_token, revoking whatever was stored before.
func (r *UserRepo) SetRememberToken(ctx context.Context, id uuid.UUID, token string) error {
	n, err := r.store.Update(ctx, usersTable,
		[]rs.Column{colRememberToken}, []any{nullableToken(token)},
		rs.Eq(colID, id))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SwapRememberToken writes token only while old is still the stored value.
func (r *UserRepo) SwapRememberToken(ctx context.Context, id uuid.UUID, old, token string) error {
	n, err := r.store.Update(ctx, usersTable,
		[]rs.Column{colRememberToken}, []any{nullableToken(token)},
		rs.And(rs.Eq(colID, id), rs.NotDistinct(colRememberToken, nullableToken(old))))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrConflict
	}
	return nil
}

// SetRecoveryToken stores token in users.token for the account owning email.
func (r *UserRepo) SetRecoveryToken(ctx context.Context, email, token string) error {
	n, err := r.store.Update(ctx, usersTable,
		[]rs.Column{colRecoveryToken}, []any{nullableToken(token)},
		rs.Eq(colEmail, email))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UsernamesByID resolves usernames for ids.
func (r *UserRepo) UsernamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	raw, err := rs.FetchKeyed[any, string](ctx, r.store, usersTable,
		rs.Columns(colID, colUsername), rs.In(colID, vals...), colID, colUsername)
	if err != nil {
		return nil, err
	}
	for k, name := range raw {
		id, err := uuidOf(k)
		if err != nil {
			return nil, fmt.Errorf("users.id: %w", err)
		}
		out[id] = name
	}
	return out, nil
}
