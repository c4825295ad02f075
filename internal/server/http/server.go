// Package httpserver exposes the session authentication API over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/nevi/internal/activity"
	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/model"
	"github.com/and161185/nevi/internal/service"
	"github.com/and161185/nevi/internal/session"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 200
)

// Accounts serves the current user's views.
type Accounts interface {
	Me(ctx context.Context, req *service.Request) (*model.User, error)
	RecentActivity(ctx context.Context, req *service.Request, limit int) (service.ActivityPage, error)
	RegisteredEvents(ctx context.Context, req *service.Request) (int, error)
}

// Recovery starts password recovery.
type Recovery interface {
	InitiatePasswordRecovery(ctx context.Context, req *service.Request, userID uuid.UUID) error
}

// Redirects holds where the guard sends clients. An empty target answers 401 instead.
type Redirects struct {
	Login  string
	Verify string
	Home   string
}

// Server wires services into gin handlers.
type Server struct {
	auth      service.AuthService
	accounts  Accounts
	recovery  Recovery
	redirects Redirects
	log       *zap.Logger
	throttle  gin.HandlerFunc
	trusted   []string
}

// Option customises Server.
type Option func(*Server)

// WithThrottle limits each client address to rps credential submissions per second.
func WithThrottle(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.throttle = Throttle(rps, burst)
		}
	}
}

// WithTrustedProxies lists the proxies whose forwarding headers name the client.
// Without it the transport peer is the client.
func WithTrustedProxies(cidrs []string) Option {
	return func(s *Server) { s.trusted = cidrs }
}

// New constructs an HTTP server with injected services.
func New(auth service.AuthService, accounts Accounts, recovery Recovery, redirects Redirects, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{auth: auth, accounts: accounts, recovery: recovery, redirects: redirects, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.trusted); err != nil {
		s.log.Error("trusted proxies", zap.Strings("proxies", s.trusted), zap.Error(err))
	}
	r.Use(Recover(s.log), Logging(s.log), s.Session())

	creds := []gin.HandlerFunc{}
	if s.throttle != nil {
		creds = append(creds, s.throttle)
	}
	r.POST("/login", append(creds, s.Login)...)
	r.POST("/logout", s.Logout)
	r.POST("/verify", append(creds, s.Verify)...)

	g := r.Group("/", s.Guard(false))
	g.GET("/me", s.Me)
	g.GET("/activity", s.Activity)
	g.GET("/events/registered", s.RegisteredEvents)
	g.POST("/users/:id/recovery", s.StartRecovery)
	return r
}

// Session restores the session for every request and stores it in the request context.
func (s *Server) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := activity.MetaFromRequest(c.Request)
		meta.Addr = c.ClientIP()
		req, err := s.auth.Begin(c.Request.Context(), ginJar{c}, meta)
		if err != nil {
			s.log.Error("session restore", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		c.Request = c.Request.WithContext(WithAuthRequest(c.Request.Context(), req))
		c.Next()
	}
}

// Guard runs the authentication check once per request. allowAnonymous lets requests
// without a logged-in session through.
func (s *Server) Guard(allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := AuthRequestFromCtx(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}
		verdict, err := s.auth.CheckAuthenticated(c.Request.Context(), req, service.CheckOptions{
			OnMFARequired:            func() { s.deny(c, s.redirects.Verify, "mfa required") },
			OnUnauthenticated:        func() { s.deny(c, s.redirects.Login, "unauthenticated") },
			AllowSessionContinuation: allowAnonymous,
		})
		if err != nil {
			s.fail(c, "check authenticated", err)
			return
		}
		if verdict != service.VerdictAuthenticated {
			return
		}
		if !s.commit(c, req) {
			return
		}
		c.Next()
	}
}

func (s *Server) deny(c *gin.Context, target, reason string) {
	if target == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
		return
	}
	c.Redirect(http.StatusSeeOther, target)
	c.Abort()
}

// commit persists the session before anything is written; false means a response was sent.
func (s *Server) commit(c *gin.Context, req *service.Request) bool {
	if err := s.auth.Commit(c.Request.Context(), req); err != nil {
		s.fail(c, "session commit", err)
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, what string, err error) {
	s.log.Error(what, zap.Error(err))
	code := http.StatusInternalServerError
	if errors.Is(err, session.ErrUnavailable) {
		code = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(code, gin.H{"error": "internal"})
}

func authRequest(c *gin.Context) *service.Request {
	req, _ := AuthRequestFromCtx(c.Request.Context())
	return req
}

func formBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b || v == "on"
}

// --- Auth ---

// Login checks the submitted credentials.
func (s *Server) Login(c *gin.Context) {
	req := authRequest(c)
	username, password := c.PostForm("username"), c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty username/password"})
		return
	}

	ok, err := s.auth.Login(c.Request.Context(), req, username, password, formBool(c.PostForm("remember")))
	switch {
	case errors.Is(err, errs.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
		return
	case err != nil:
		s.fail(c, "login", err)
		return
	case !ok:
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	if !s.commit(c, req) {
		return
	}

	next := s.redirects.Home
	if req.Session.MFARequired {
		next = s.redirects.Verify
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"mfa_required":  req.Session.MFARequired,
		"redirect":      next,
	})
}

// Logout ends the session and sends the client to the login page.
func (s *Server) Logout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), authRequest(c)); err != nil {
		// cookies are already expired; the server-side copy will time out
		s.log.Warn("logout", zap.Error(err))
	}
	if s.redirects.Login == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, s.redirects.Login)
}

// Verify clears the MFA gate with a TOTP code.
func (s *Server) Verify(c *gin.Context) {
	req := authRequest(c)
	ok, err := s.auth.VerifyMFA(c.Request.Context(), req, c.PostForm("code"))
	if err != nil {
		s.fail(c, "verify", err)
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	if !s.commit(c, req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "redirect": s.redirects.Home})
}

// --- Account ---

// Me returns the current user's profile.
func (s *Server) Me(c *gin.Context) {
	u, err := s.accounts.Me(c.Request.Context(), authRequest(c))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		s.fail(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           u.ID.String(),
		"username":     u.Username,
		"email":        u.Email,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"mfa_required": u.MFARequired,
	})
}

// RegisteredEvents reports how many upcoming events the current user has confirmed.
func (s *Server) RegisteredEvents(c *gin.Context) {
	n, err := s.accounts.RegisteredEvents(c.Request.Context(), authRequest(c))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		s.fail(c, "registered events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": n})
}

// Activity lists the newest activity of the current user.
func (s *Server) Activity(c *gin.Context) {
	limit := defaultActivityLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
			return
		}
		limit = min(n, maxActivityLimit)
	}

	page, err := s.accounts.RecentActivity(c.Request.Context(), authRequest(c), limit)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user"})
			return
		}
		s.fail(c, "activity", err)
		return
	}

	items := make([]gin.H, 0, len(page.Entries))
	for _, e := range page.Entries {
		items = append(items, gin.H{
			"id":          e.ID,
			"at":          e.At.Format(time.RFC3339),
			"username":    e.Username,
			"ip":          e.IP,
			"os":          e.OS,
			"browser":     e.Browser,
			"page":        e.Page,
			"action":      e.Action,
			"status":      e.Status,
			"description": e.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": items, "total": page.Total})
}

// StartRecovery sends a password reset email to the given user.
func (s *Server) StartRecovery(c *gin.Context) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}
	err = s.recovery.InitiatePasswordRecovery(c.Request.Context(), authRequest(c), id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case err != nil:
		s.log.Error("recovery", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "recovery failed"})
	default:
		c.Status(http.StatusAccepted)
	}
}
