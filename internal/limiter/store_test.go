package limiter

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	rs "github.com/and161185/nevi/internal/recordstore"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var (
	selBlocked = regexp.QuoteMeta(`SELECT "blocked_until" FROM "login_attempts" WHERE ("username" = $1) AND ("ip_hash" = $2) LIMIT 1`)
	selCount   = regexp.QuoteMeta(`SELECT "fail_count", "window_start" FROM "login_attempts" WHERE ("username" = $1) AND ("ip_hash" = $2) LIMIT 1`)
)

func newLimiter(t *testing.T, maxFails int) (*Store, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewStore(rs.New(mock), Policy{MaxFails: maxFails, Window: 15 * time.Minute, Block: 10 * time.Minute})
	l.now = func() time.Time { return now }
	return l, mock, now
}

func TestAllow(t *testing.T) {
	l, mock, now := newLimiter(t, 5)
	defer mock.Close()
	ctx := context.Background()
	h := HashIP("1.2.3.4")

	mock.ExpectQuery(selBlocked).WithArgs("u", h).WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}))
	ok, dur, err := l.Allow(ctx, "u", h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, dur)

	mock.ExpectQuery(selBlocked).WithArgs("u", h).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(3 * time.Minute)))
	ok, dur, err = l.Allow(ctx, "u", h)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3*time.Minute, dur)

	mock.ExpectQuery(selBlocked).WithArgs("u", h).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(nil))
	ok, _, err = l.Allow(ctx, "u", h)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(selBlocked).WithArgs("u", h).WillReturnError(errors.New("db boom"))
	ok, _, err = l.Allow(ctx, "u", h)
	require.Error(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuccess_DeletesCounters(t *testing.T) {
	l, mock, _ := newLimiter(t, 5)
	defer mock.Close()
	h := HashIP("1.2.3.4")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "login_attempts" WHERE ("username" = $1) AND ("ip_hash" = $2)`)).
		WithArgs("u", h).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, l.Success(context.Background(), "u", h))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_FirstAttemptInserts(t *testing.T) {
	l, mock, now := newLimiter(t, 5)
	defer mock.Close()
	h := HashIP("1.2.3.4")

	mock.ExpectQuery(selCount).WithArgs("u", h).WillReturnRows(pgxmock.NewRows([]string{"fail_count", "window_start"}))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "login_attempts" ("username", "ip_hash", "fail_count", "window_start", "blocked_until") VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs("u", h, 1, now, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	blocked, dur, err := l.Failure(context.Background(), "u", h)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, dur)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BlocksAtThreshold(t *testing.T) {
	l, mock, now := newLimiter(t, 3)
	defer mock.Close()
	h := HashIP("1.2.3.4")
	start := now.Add(-time.Minute)

	mock.ExpectQuery(selCount).WithArgs("u", h).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count", "window_start"}).AddRow(int32(2), start))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "login_attempts" SET "fail_count" = $1, "window_start" = $2, "blocked_until" = $3 WHERE ("username" = $4) AND ("ip_hash" = $5)`)).
		WithArgs(3, start, now.Add(10*time.Minute), "u", h).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	blocked, dur, err := l.Failure(context.Background(), "u", h)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_WindowResets(t *testing.T) {
	l, mock, now := newLimiter(t, 3)
	defer mock.Close()
	h := HashIP("1.2.3.4")

	mock.ExpectQuery(selCount).WithArgs("u", h).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count", "window_start"}).AddRow(int32(2), now.Add(-time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "login_attempts" SET "fail_count" = $1, "window_start" = $2 WHERE ("username" = $3) AND ("ip_hash" = $4)`)).
		WithArgs(1, now, "u", h).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	blocked, _, err := l.Failure(context.Background(), "u", h)
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_DBError(t *testing.T) {
	l, mock, _ := newLimiter(t, 3)
	defer mock.Close()

	mock.ExpectQuery(selCount).WillReturnError(errors.New("query error"))
	_, _, err := l.Failure(context.Background(), "u", []byte("h"))
	require.Error(t, err)
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4:123")
	b := HashIP("1.2.3.4:123")
	c := HashIP("5.6.7.8:321")
	if string(a) != string(b) || string(a) == string(c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}

func TestPolicy_Enabled(t *testing.T) {
	require.False(t, Policy{}.Enabled())
	require.True(t, Policy{MaxFails: 3}.Enabled())
}
