package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/nevi/internal/errs"
	rs "github.com/and161185/nevi/internal/recordstore"
)

const (
	attemptsTable rs.Table = "login_attempts"

	colUsername     rs.Column = "username"
	colIPHash       rs.Column = "ip_hash"
	colFailCount    rs.Column = "fail_count"
	colWindowStart  rs.Column = "window_start"
	colBlockedUntil rs.Column = "blocked_until"
)

// Store is a record-store backed limiter with a fixed failure window and lockout.
// The read-then-write sequence is not transactional; concurrent failures may undercount.
type Store struct {
	store  *rs.Store
	policy Policy
	now    func() time.Time
}

// NewStore constructs a limiter enforcing p.
func NewStore(store *rs.Store, p Policy) *Store {
	return &Store{store: store, policy: p, now: time.Now}
}

func key(username string, ipHash []byte) rs.Cond {
	return rs.And(rs.Eq(colUsername, username), rs.Eq(colIPHash, ipHash))
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Store) Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	row, err := l.store.FetchOne(ctx, attemptsTable, rs.Columns(colBlockedUntil), key(username, ipHash))
	if errors.Is(err, errs.ErrNotFound) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	until, _ := row[string(colBlockedUntil)].(time.Time)
	if now := l.now(); until.After(now) {
		return false, until.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets previous failures for (username, ip).
func (l *Store) Success(ctx context.Context, username string, ipHash []byte) error {
	_, err := l.store.Delete(ctx, attemptsTable, key(username, ipHash))
	return err
}

// Failure records a failed attempt and blocks once the threshold is reached inside the window.
func (l *Store) Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	now := l.now()
	row, err := l.store.FetchOne(ctx, attemptsTable, rs.Columns(colFailCount, colWindowStart), key(username, ipHash))
	switch {
	case errors.Is(err, errs.ErrNotFound):
		fails := 1
		var blocked any
		if fails >= l.policy.MaxFails {
			blocked = now.Add(l.policy.Block)
		}
		if err := l.store.Insert(ctx, attemptsTable,
			[]rs.Column{colUsername, colIPHash, colFailCount, colWindowStart, colBlockedUntil},
			[]any{username, ipHash, fails, now, blocked}); err != nil {
			return false, 0, err
		}
		if blocked != nil {
			return true, l.policy.Block, nil
		}
		return false, 0, nil
	case err != nil:
		return false, 0, err
	}

	fails := toInt(row[string(colFailCount)]) + 1
	start, _ := row[string(colWindowStart)].(time.Time)
	if now.Sub(start) > l.policy.Window {
		fails, start = 1, now
	}
	cols := []rs.Column{colFailCount, colWindowStart}
	vals := []any{fails, start}
	blocked := fails >= l.policy.MaxFails
	if blocked {
		cols = append(cols, colBlockedUntil)
		vals = append(vals, now.Add(l.policy.Block))
	}
	if _, err := l.store.Update(ctx, attemptsTable, cols, vals, key(username, ipHash)); err != nil {
		return false, 0, err
	}
	if blocked {
		return true, l.policy.Block, nil
	}
	return false, 0, nil
}

func toInt(v any) int {
	switch x := v.(type) {
	case int32:
		return int(x)
	case int64:
		return int(x)
	case int:
		return x
	}
	return 0
}
