// Package service contains the application services: the session/token authority,
// password recovery and activity queries.
package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/and161185/nevi/internal/activity"
	pkgcrypto "github.com/and161185/nevi/internal/crypto"
	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/limiter"
	"github.com/and161185/nevi/internal/model"
	"github.com/and161185/nevi/internal/repository"
	"github.com/and161185/nevi/internal/session"
	"github.com/gofrs/uuid/v5"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	rememberTokenBytes = 16
	tenYears           = 10 * 365 * 24 * time.Hour
)

// AuthService defines the authentication state machine.
type AuthService interface {
	// Begin restores the session referenced by the request's session cookie.
	Begin(ctx context.Context, jar CookieJar, meta activity.Meta) (*Request, error)
	// Commit persists session changes made during the request.
	Commit(ctx context.Context, req *Request) error
	// Login verifies credentials and, on success, binds the user to the session.
	Login(ctx context.Context, req *Request, username, password string, remember bool) (bool, error)
	// CheckAuthenticated decides whether the request may proceed.
	CheckAuthenticated(ctx context.Context, req *Request, opts CheckOptions) (Verdict, error)
	// VerifyMFA clears the MFA gate when code is a valid second factor.
	VerifyMFA(ctx context.Context, req *Request, code string) (bool, error)
	// Logout destroys the session and expires the client cookies.
	Logout(ctx context.Context, req *Request) error
}

// Verdict is the outcome of CheckAuthenticated.
type Verdict int

const (
	VerdictUnauthenticated Verdict = iota
	VerdictAuthenticated
	VerdictMFARequired
)

func (v Verdict) String() string {
	switch v {
	case VerdictAuthenticated:
		return "authenticated"
	case VerdictMFARequired:
		return "mfa_required"
	default:
		return "unauthenticated"
	}
}

// CheckOptions carries the caller's reactions for negative verdicts.
type CheckOptions struct {
	// OnMFARequired runs when the session waits for a second factor.
	OnMFARequired func()
	// OnUnauthenticated runs after the forced logout of a session that is not logged in.
	OnUnauthenticated func()
	// AllowSessionContinuation lets a request without a logged-in session pass as authenticated.
	AllowSessionContinuation bool
}

// Config tunes cookie handling.
type Config struct {
	SessionCookie  string
	RememberCookie string
	RememberTTL    time.Duration
	SecureCookies  bool
	// RememberCAS stores a new remember token only if the previous one is still current.
	RememberCAS bool
}

// DefaultConfig returns the cookie names and lifetimes used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SessionCookie:  "sid",
		RememberCookie: "remember_me",
		RememberTTL:    tenYears,
	}
}

// Option customises AuthServiceImpl.
type Option func(*AuthServiceImpl)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *AuthServiceImpl) { s.log = l } }

// WithLimiter enables login rate limiting.
func WithLimiter(l limiter.Limiter) Option { return func(s *AuthServiceImpl) { s.lim = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *AuthServiceImpl) { s.now = now } }

type AuthServiceImpl struct {
	users    repository.UserRepository
	sessions session.Store
	signer   *session.Signer
	events   activity.Sink
	lim      limiter.Limiter
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, sessions session.Store, signer *session.Signer,
	events activity.Sink, cfg Config, opts ...Option) *AuthServiceImpl {
	def := DefaultConfig()
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = def.SessionCookie
	}
	if cfg.RememberCookie == "" {
		cfg.RememberCookie = def.RememberCookie
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = def.RememberTTL
	}
	s := &AuthServiceImpl{
		users:    users,
		sessions: sessions,
		signer:   signer,
		events:   events,
		log:      zap.NewNop(),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Begin restores the session referenced by the session cookie. A missing, forged or expired
// cookie yields an empty session; a failing session backend is an error.
func (s *AuthServiceImpl) Begin(ctx context.Context, jar CookieJar, meta activity.Meta) (*Request, error) {
	req := NewRequest(jar, meta)
	raw, ok := jar.Get(s.cfg.SessionCookie)
	if !ok || raw == "" {
		return req, nil
	}
	id, err := s.signer.Parse(raw)
	if err != nil {
		return req, nil
	}
	d, found, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if found {
		req.sessionID = id
		req.Session = d
	}
	return req, nil
}

// Commit saves the session if it changed, issuing a session ID and cookie when needed.
func (s *AuthServiceImpl) Commit(ctx context.Context, req *Request) error {
	if req.destroyed || !req.dirty {
		return nil
	}
	if req.staleID != "" {
		if err := s.sessions.Delete(ctx, req.staleID); err != nil {
			return err
		}
		req.staleID = ""
	}
	if req.sessionID == "" {
		id, err := session.NewID()
		if err != nil {
			return err
		}
		val, err := s.signer.Sign(id)
		if err != nil {
			return err
		}
		req.sessionID = id
		req.Cookies.Set(s.cookie(s.cfg.SessionCookie, val, 0))
	}
	if err := s.sessions.Save(ctx, req.sessionID, req.Session); err != nil {
		return err
	}
	req.dirty = false
	return nil
}

// Login checks username/password. Wrong credentials return (false, nil) and leave the session
// untouched; only store failures and rate limiting are errors. On success the session ID is
// rotated, and with remember set a new remember token replaces the stored one. For accounts
// behind MFA the token is only minted once VerifyMFA succeeds.
func (s *AuthServiceImpl) Login(ctx context.Context, req *Request, username, password string, remember bool) (bool, error) {
	var ipHash []byte
	if s.lim != nil {
		ipHash = limiter.HashIP(req.Meta.Addr)
		allowed, _, err := s.lim.Allow(ctx, username, ipHash)
		if err != nil {
			return false, err
		}
		if !allowed {
			s.record(ctx, req, uuid.Nil, "login", activity.ActionLogin, activity.Failed, "")
			return false, errs.ErrRateLimited
		}
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return false, err
	}
	var ok bool
	if err != nil {
		// same hashing cost as a real account
		ok = pkgcrypto.VerifyAbsent(password)
	} else {
		ok = pkgcrypto.VerifyPassword(password, u.PasswordHash)
	}
	if !ok {
		var uid uuid.UUID
		if u != nil {
			uid = u.ID
		}
		s.record(ctx, req, uid, "login", activity.ActionLogin, activity.Failed, "")
		if s.lim != nil {
			blocked, _, ferr := s.lim.Failure(ctx, username, ipHash)
			if ferr != nil {
				s.log.Warn("limiter failure update", zap.Error(ferr))
			} else if blocked {
				return false, errs.ErrRateLimited
			}
		}
		return false, nil
	}

	req.rotate()
	req.set(session.Data{
		LoggedIn:        true,
		UserID:          u.ID,
		MFARequired:     u.MFARequired,
		RememberPending: remember && u.MFARequired,
	})

	if remember && !u.MFARequired {
		if err := s.issueRememberToken(ctx, req, u); err != nil {
			return false, err
		}
	}

	if s.lim != nil {
		if err := s.lim.Success(ctx, username, ipHash); err != nil {
			s.log.Warn("limiter reset", zap.Error(err))
		}
	}
	s.record(ctx, req, u.ID, "login", activity.ActionLogin, activity.Succeeded, "")
	s.log.Info("login", zap.String("user_id", u.ID.String()), zap.Bool("mfa_pending", u.MFARequired), zap.Bool("remember", remember))
	return true, nil
}

// issueRememberToken mints a token, stores it on the user and hands it to the client.
// Storing overwrites the previous token, which is thereby revoked.
func (s *AuthServiceImpl) issueRememberToken(ctx context.Context, req *Request, u *model.User) error {
	token, err := pkgcrypto.RandHex(rememberTokenBytes)
	if err != nil {
		return err
	}
	if s.cfg.RememberCAS {
		err = s.users.SwapRememberToken(ctx, u.ID, u.RememberToken, token)
		if errors.Is(err, errs.ErrConflict) {
			// a concurrent login rotated the token first; keep theirs
			s.log.Warn("remember token rotated concurrently", zap.String("user_id", u.ID.String()))
			return nil
		}
	} else {
		err = s.users.SetRememberToken(ctx, u.ID, token)
	}
	if err != nil {
		return err
	}
	req.Cookies.Set(s.cookie(s.cfg.RememberCookie, token, s.cfg.RememberTTL))
	return nil
}

// CheckAuthenticated evaluates the request once:
//  1. a remember cookie that matches a user restores an authenticated session;
//  2. a session that is not logged in passes only with AllowSessionContinuation,
//     otherwise it is logged out and OnUnauthenticated runs;
//  3. a logged-in session waiting for MFA triggers OnMFARequired and is kept;
//  4. anything else is authenticated.
func (s *AuthServiceImpl) CheckAuthenticated(ctx context.Context, req *Request, opts CheckOptions) (Verdict, error) {
	if token, ok := req.Cookies.Get(s.cfg.RememberCookie); ok && token != "" {
		u, err := s.users.GetByRememberToken(ctx, token)
		switch {
		case err == nil:
			if !req.Session.LoggedIn || req.Session.UserID != u.ID {
				req.rotate()
			}
			req.set(session.Data{LoggedIn: true, UserID: u.ID})
			return VerdictAuthenticated, nil
		case !errors.Is(err, errs.ErrNotFound):
			return VerdictUnauthenticated, err
		}
	}

	if !req.Session.LoggedIn {
		if opts.AllowSessionContinuation {
			return VerdictAuthenticated, nil
		}
		if err := s.Logout(ctx, req); err != nil {
			return VerdictUnauthenticated, err
		}
		if opts.OnUnauthenticated != nil {
			opts.OnUnauthenticated()
		}
		return VerdictUnauthenticated, nil
	}

	if req.Session.MFARequired {
		if opts.OnMFARequired != nil {
			opts.OnMFARequired()
		}
		return VerdictMFARequired, nil
	}
	return VerdictAuthenticated, nil
}

// VerifyMFA checks a TOTP code for the session user. A session without a pending gate
// verifies trivially; a session that is not logged in never does. A remember request made
// at login is honoured here.
func (s *AuthServiceImpl) VerifyMFA(ctx context.Context, req *Request, code string) (bool, error) {
	if !req.Session.LoggedIn {
		return false, nil
	}
	if !req.Session.MFARequired {
		return true, nil
	}
	u, err := s.users.GetByID(ctx, req.Session.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if u.TOTPSecret == "" || !totp.Validate(code, u.TOTPSecret) {
		s.record(ctx, req, u.ID, "login", activity.ActionVerify, activity.Failed, "")
		return false, nil
	}
	pending := req.Session.RememberPending
	req.rotate()
	req.set(session.Data{LoggedIn: true, UserID: u.ID})
	if pending {
		if err := s.issueRememberToken(ctx, req, u); err != nil {
			return false, err
		}
	}
	s.record(ctx, req, u.ID, "login", activity.ActionVerify, activity.Succeeded, "")
	return true, nil
}

// Logout clears the session server-side and expires both cookies. A remember cookie that
// still matches a user is revoked in the store as well. Logging out twice is harmless.
func (s *AuthServiceImpl) Logout(ctx context.Context, req *Request) error {
	uid := req.UserID()

	if token, ok := req.Cookies.Get(s.cfg.RememberCookie); ok {
		if token != "" {
			if u, err := s.users.GetByRememberToken(ctx, token); err == nil {
				if err := s.users.SetRememberToken(ctx, u.ID, ""); err != nil {
					s.log.Warn("remember token revoke failed", zap.Error(err))
				}
				if uid == uuid.Nil {
					uid = u.ID
				}
			}
		}
		req.Cookies.Set(s.expired(s.cfg.RememberCookie))
	}
	if _, ok := req.Cookies.Get(s.cfg.SessionCookie); ok || req.sessionID != "" {
		req.Cookies.Set(s.expired(s.cfg.SessionCookie))
	}

	var delErr error
	for _, id := range []string{req.sessionID, req.staleID} {
		if id == "" {
			continue
		}
		if err := s.sessions.Delete(ctx, id); err != nil && delErr == nil {
			delErr = err
		}
	}
	req.Session = session.Data{}
	req.sessionID, req.staleID = "", ""
	req.destroyed = true

	if uid != uuid.Nil {
		s.record(ctx, req, uid, "logout", activity.ActionLogout, activity.Succeeded, "")
	}
	return delErr
}

func (s *AuthServiceImpl) record(ctx context.Context, req *Request, uid uuid.UUID, page, action, status, detail string) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, req.Meta, activity.Event{UserID: uid, Page: page, Action: action, Status: status, Detail: detail})
}

func (s *AuthServiceImpl) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
		c.Expires = s.now().Add(ttl)
	}
	return c
}

func (s *AuthServiceImpl) expired(name string) *http.Cookie {
	c := s.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = s.now().Add(-time.Hour)
	return c
}
