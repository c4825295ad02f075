// Package postgres contains PostgreSQL implementations of repository interfaces,
// built on the generic record store.
package postgres

import (
	"fmt"
	"time"

	rs "github.com/and161185/nevi/internal/recordstore"
	"github.com/gofrs/uuid/v5"
)

const (
	usersTable rs.Table = "users"

	colID            rs.Column = "id"
	colUsername      rs.Column = "username"
	colPassword      rs.Column = "password"
	colRememberToken rs.Column = "remember_token"
	colRecoveryToken rs.Column = "token"
	colEmail         rs.Column = "email"
	colFirstName     rs.Column = "firstName"
	colLastName      rs.Column = "lastName"
	colMFARequired   rs.Column = "mfa_required"
	colTOTPSecret    rs.Column = "totp_secret"
)

var userColumns = rs.Columns(
	colID, colUsername, colPassword, colRememberToken, colRecoveryToken,
	colEmail, colFirstName, colLastName, colMFARequired, colTOTPSecret,
)

const (
	logsTable rs.Table = "logs"

	colLogID          rs.Column = "id"
	colDateTime       rs.Column = "dateTime"
	colUserID         rs.Column = "userID"
	colUserIP         rs.Column = "userIP"
	colUserOS         rs.Column = "userOS"
	colUserBrowser    rs.Column = "userBrowser"
	colPage           rs.Column = "page"
	colActionType     rs.Column = "actionType"
	colActivityStatus rs.Column = "activityStatus"
	colDescription    rs.Column = "description"
)

var logColumns = rs.Columns(
	colLogID, colDateTime, colUserID, colUserIP, colUserOS, colUserBrowser,
	colPage, colActionType, colActivityStatus, colDescription,
)

const (
	eventsTable   rs.Table = "events"
	servicesTable rs.Table = "services"
	scheduleTable rs.Table = "schedule"

	colEventID    rs.Column = "id"
	colServiceRef rs.Column = "serviceID"
	colEventDate  rs.Column = "date"
	colStartTime  rs.Column = "startTime"
	colEndTime    rs.Column = "endTime"

	colServiceID   rs.Column = "id"
	colServiceName rs.Column = "name"

	colScheduleUser  rs.Column = "userID"
	colScheduleEvent rs.Column = "eventID"
	colAttendance    rs.Column = "attendanceStatus"
)

var (
	eventColumns   = rs.Columns(colEventID, colServiceRef, colEventDate, colStartTime, colEndTime)
	serviceColumns = rs.Columns(colServiceID, colServiceName, colStartTime, colEndTime)
)

// Values come back from pgx.RowToMap with driver-level types; the helpers below
// normalise the handful of shapes we store.

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func int64Of(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int32:
		return int64(x)
	case int:
		return int64(x)
	}
	return 0
}

func timeOf(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func uuidOf(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case nil:
		return uuid.Nil, nil
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case []byte:
		return uuid.FromBytes(x)
	case string:
		return uuid.FromString(x)
	default:
		return uuid.Nil, fmt.Errorf("unexpected uuid value %T", v)
	}
}

// nullableToken maps "" to SQL NULL so that an empty token never matches a lookup.
func nullableToken(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableUUID maps uuid.Nil to SQL NULL.
func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
