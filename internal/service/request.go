package service

import (
	"net/http"

	"github.com/and161185/nevi/internal/activity"
	"github.com/and161185/nevi/internal/model"
	"github.com/and161185/nevi/internal/session"
	"github.com/gofrs/uuid/v5"
)

// CookieJar is the client-held cookie state of one request: incoming values and
// outgoing Set-Cookie instructions.
type CookieJar interface {
	// Get returns the value of an incoming cookie.
	Get(name string) (string, bool)
	// Set queues a cookie on the response.
	Set(c *http.Cookie)
}

// Request is the authentication context of one inbound request. It is created by
// AuthService.Begin, mutated by the state machine and persisted by AuthService.Commit.
// A Request is not safe for concurrent use.
type Request struct {
	Session session.Data
	Meta    activity.Meta
	Cookies CookieJar

	sessionID string
	staleID   string // session to delete on commit after an ID rotation
	dirty     bool
	destroyed bool
}

// NewRequest builds a context with an empty session. Begin is the usual entry point;
// NewRequest is for callers that manage session loading themselves.
func NewRequest(jar CookieJar, meta activity.Meta) *Request {
	return &Request{Cookies: jar, Meta: meta}
}

// State reports the authentication state carried by the session.
func (r *Request) State() model.AuthState {
	switch {
	case !r.Session.LoggedIn:
		return model.Unauthenticated
	case r.Session.MFARequired:
		return model.AuthenticatedPendingMFA
	default:
		return model.Authenticated
	}
}

// UserID returns the bound user, or uuid.Nil.
func (r *Request) UserID() uuid.UUID {
	if !r.Session.LoggedIn {
		return uuid.Nil
	}
	return r.Session.UserID
}

func (r *Request) set(d session.Data) {
	r.Session = d
	r.dirty = true
	r.destroyed = false
}

// rotate drops the current session ID so Commit issues a fresh one.
func (r *Request) rotate() {
	if r.sessionID != "" && r.staleID == "" {
		r.staleID = r.sessionID
	}
	r.sessionID = ""
	r.dirty = true
}
