// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account row. Only the hash of the password is ever stored.
type User struct {
	ID            uuid.UUID // PK
	Username      string    // unique
	PasswordHash  string    // encoded Argon2id or bcrypt hash
	RememberToken string    // single active remember-me token, "" when none
	RecoveryToken string    // pending password recovery token, "" when none
	Email         string
	FirstName     string
	LastName      string
	MFARequired   bool   // login leaves the session pending until a second factor is verified
	TOTPSecret    string // base32 TOTP secret, "" when MFA is not enrolled
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// AuthState is the authentication state of a session.
type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticated
	AuthenticatedPendingMFA
)

func (s AuthState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case AuthenticatedPendingMFA:
		return "authenticated_pending_mfa"
	default:
		return "unauthenticated"
	}
}

// ActivityEntry is one row of the activity log.
type ActivityEntry struct {
	ID          int64
	At          time.Time
	UserID      uuid.UUID
	IP          string
	OS          string
	Browser     string
	Page        string
	Action      string
	Status      string
	Description string
}

// Attendance answers stored in the schedule.
const (
	AttendanceCan   = "can"
	AttendanceCant  = "cant"
	AttendanceMaybe = "maybe"
)

// Event is one dated occurrence, optionally an instance of a Service.
// Times are wall-clock "15:04" or "15:04:05" strings, "" when unset.
type Event struct {
	ID        int64
	ServiceID int64 // 0 for a standalone event
	Date      time.Time
	StartTime string
	EndTime   string
}

// Service is a recurring activity whose times serve as event defaults.
type Service struct {
	ID        int64
	Name      string
	StartTime string
	EndTime   string
}
