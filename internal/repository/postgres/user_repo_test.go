package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/model"
	rs "github.com/and161185/nevi/internal/recordstore"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*rs.Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return rs.New(mock), mock
}

const selectUser = `SELECT "id", "username", "password", "remember_token", "token", "email", "firstName", "lastName", "mfa_required", "totp_secret" FROM "users" WHERE `

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "password", "remember_token", "token", "email", "firstName", "lastName", "mfa_required", "totp_secret"})
}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	ctx := context.Background()
	u := &model.User{
		ID:           uuid.Must(uuid.NewV4()),
		Username:     "alice",
		PasswordHash: "$argon2id$...",
		Email:        "alice@example.com",
		FirstName:    "Alice",
		LastName:     "Liddell",
	}
	q := regexp.QuoteMeta(`INSERT INTO "users" ("id", "username", "password", "email", "firstName", "lastName", "mfa_required", "totp_secret") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)

	mock.ExpectExec(q).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName, false, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(q).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName, false, "").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByUsername(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(regexp.QuoteMeta(selectUser+`"username" = $1 LIMIT 1`)).
		WithArgs("alice").
		WillReturnRows(userRows().AddRow([16]byte(id), "alice", "h", nil, nil, "a@x", "Alice", "L", true, "SECRET"))
	u, err := r.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "h", u.PasswordHash)
	require.Empty(t, u.RememberToken)
	require.True(t, u.MFARequired)
	require.Equal(t, "SECRET", u.TOTPSecret)

	mock.ExpectQuery(regexp.QuoteMeta(selectUser+`"username" = $1 LIMIT 1`)).
		WithArgs("nobody").
		WillReturnRows(userRows())
	_, err = r.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_StringID(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(regexp.QuoteMeta(selectUser+`"id" = $1 LIMIT 1`)).
		WithArgs(id).
		WillReturnRows(userRows().AddRow(id.String(), "bob", "h", "tok", "rec", "b@x", "Bob", "", false, nil))
	u, err := r.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "tok", u.RememberToken)
	require.Equal(t, "rec", u.RecoveryToken)
	require.Equal(t, "Bob", u.FullName())
}

func TestUserRepo_GetByRememberToken(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	_, err := r.GetByRememberToken(ctx, "")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta(selectUser+`"remember_token" = $1 LIMIT 1`)).
		WithArgs("abc").
		WillReturnRows(userRows().AddRow(id, "alice", "h", "abc", nil, "", "", "", false, ""))
	u, err := r.GetByRememberToken(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SetRememberToken(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	q := regexp.QuoteMeta(`UPDATE "users" SET "remember_token" = $1 WHERE "id" = $2`)

	mock.ExpectExec(q).WithArgs("t1", id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetRememberToken(ctx, id, "t1"))

	mock.ExpectExec(q).WithArgs(nil, id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetRememberToken(ctx, id, ""))

	mock.ExpectExec(q).WithArgs("t2", id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetRememberToken(ctx, id, "t2"), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SwapRememberToken(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	q := regexp.QuoteMeta(`UPDATE "users" SET "remember_token" = $1 WHERE ("id" = $2) AND ("remember_token" IS NOT DISTINCT FROM $3)`)

	mock.ExpectExec(q).WithArgs("new", id, nil).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SwapRememberToken(ctx, id, "", "new"))

	mock.ExpectExec(q).WithArgs("newer", id, "stale").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SwapRememberToken(ctx, id, "stale", "newer"), errs.ErrConflict)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SetRecoveryToken(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	q := regexp.QuoteMeta(`UPDATE "users" SET "token" = $1 WHERE "email" = $2`)

	mock.ExpectExec(q).WithArgs("rt", "a@x").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetRecoveryToken(context.Background(), "a@x", "rt"))

	mock.ExpectExec(q).WithArgs("rt", "none@x").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetRecoveryToken(context.Background(), "none@x", "rt"), errs.ErrNotFound)
}

func TestUserRepo_UsernamesByID(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewUserRepo(store)
	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())

	empty, err := r.UsernamesByID(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "username" FROM "users" WHERE "id" IN ($1, $2)`)).
		WithArgs(a, b).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username"}).
			AddRow([16]byte(a), "alice").
			AddRow([16]byte(b), "bob"))
	got, err := r.UsernamesByID(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{a: "alice", b: "bob"}, got)
}

func TestActivityRepo_AppendListCount(t *testing.T) {
	store, mock := newStore(t)
	defer mock.Close()
	r := NewActivityRepo(store)
	ctx := context.Background()
	uid := uuid.Must(uuid.NewV4())
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "logs" ("dateTime", "userID", "userIP", "userOS", "userBrowser", "page", "actionType", "activityStatus", "description") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)).
		WithArgs(at, nil, "1.2.3.4", "Linux", "Firefox", "login", "login", "failed", "Log user in").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Append(ctx, model.ActivityEntry{
		At: at, IP: "1.2.3.4", OS: "Linux", Browser: "Firefox",
		Page: "login", Action: "login", Status: "failed", Description: "Log user in",
	}))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "dateTime", "userID", "userIP", "userOS", "userBrowser", "page", "actionType", "activityStatus", "description" FROM "logs" WHERE "userID" = $1 ORDER BY "dateTime" DESC LIMIT 20`)).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows([]string{"id", "dateTime", "userID", "userIP", "userOS", "userBrowser", "page", "actionType", "activityStatus", "description"}).
			AddRow(int64(9), at, [16]byte(uid), "1.2.3.4", "Linux", "Firefox", "logout", "logout", "succeeded", "Log user out"))
	list, err := r.ListByUser(ctx, uid, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(9), list[0].ID)
	require.Equal(t, uid, list[0].UserID)
	require.Equal(t, "Log user out", list[0].Description)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM (SELECT "id" FROM "logs" WHERE "userID" = $1) AS matched`)).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	n, err := r.CountByUser(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, mock.ExpectationsWereMet())
}
