// Package activity records authentication and domain events in the activity log.
package activity

import (
	"context"
	"strings"
	"time"

	"github.com/and161185/nevi/internal/model"
	"github.com/and161185/nevi/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Action kinds.
const (
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionVerify = "verify"
	ActionEmail  = "email"
	ActionCreate = "create"
	ActionModify = "modify"
	ActionDelete = "delete"
	ActionView   = "view"
)

// Outcomes.
const (
	Succeeded = "succeeded"
	Failed    = "failed"
)

// Event is what the core emits after an attempt.
type Event struct {
	UserID uuid.UUID // uuid.Nil when the actor is unknown
	Page   string
	Action string
	Status string
	Detail string
}

// Sink receives events. The auth service depends on this rather than on *Recorder.
type Sink interface {
	Record(ctx context.Context, meta Meta, ev Event)
}

// Recorder timestamps and enriches events and appends them to the activity repository.
// Write failures are logged, never returned.
type Recorder struct {
	repo repository.ActivityRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewRecorder constructs a Recorder. A nil logger discards output.
func NewRecorder(repo repository.ActivityRepository, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, log: log, now: time.Now}
}

// Record builds the log row for ev and stores it.
func (r *Recorder) Record(ctx context.Context, meta Meta, ev Event) {
	page := normalizePage(ev.Page)
	e := model.ActivityEntry{
		At:          r.now().UTC(),
		UserID:      ev.UserID,
		IP:          meta.IP,
		OS:          OS(meta.UserAgent),
		Browser:     Browser(meta.UserAgent),
		Page:        page,
		Action:      ev.Action,
		Status:      ev.Status,
		Description: describe(page, ev.Action, ev.Detail),
	}
	if err := r.repo.Append(ctx, e); err != nil {
		r.log.Warn("activity append failed",
			zap.String("page", e.Page),
			zap.String("action", e.Action),
			zap.Error(err),
		)
	}
}

var pageNames = map[string]string{
	"categories":  "category",
	"services":    "service",
	"events":      "event",
	"viewInfo":    "event",
	"users":       "user",
	"teams":       "team",
	"worshippers": "worshipper",
	"speakers":    "speaker",
}

func normalizePage(p string) string {
	if n, ok := pageNames[p]; ok {
		return n
	}
	return p
}

var actionLabels = map[string]string{
	ActionCreate: "Create",
	ActionModify: "Modify",
	ActionDelete: "Delete",
	ActionView:   "View",
	ActionLogin:  "Log",
	ActionLogout: "Log",
	ActionEmail:  "Email",
	ActionVerify: "Verify",
}

func describe(page, action, detail string) string {
	label, ok := actionLabels[action]
	if !ok {
		label = action
	}
	switch page {
	case "login":
		return label + " user in"
	case "logout":
		return label + " user out"
	}
	return strings.TrimSpace(label + " " + page + " " + detail)
}
