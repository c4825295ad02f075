package recordstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// StoreError reports a connection or statement failure. It is never used for an empty result,
// which is reported as errs.ErrNotFound instead.
type StoreError struct {
	Op    string
	Table Table
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("recordstore: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err carries a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}
