package service

import (
	"context"
	"time"

	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/model"
	"github.com/and161185/nevi/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// AccountService serves read-only views for the authenticated user.
type AccountService struct {
	users    repository.UserRepository
	activity repository.ActivityRepository
	events   repository.EventRepository

	now func() time.Time
	loc *time.Location // zone of event dates and times
}

// NewAccountService constructs an AccountService. Event times are read in the local zone.
func NewAccountService(users repository.UserRepository, activity repository.ActivityRepository, events repository.EventRepository) *AccountService {
	return &AccountService{users: users, activity: activity, events: events, now: time.Now, loc: time.Local}
}

// Me loads the user bound to the request.
func (s *AccountService) Me(ctx context.Context, req *Request) (*model.User, error) {
	id := req.UserID()
	if id == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	return s.users.GetByID(ctx, id)
}

// ActivityEntry is a log row with the actor's username resolved.
type ActivityEntry struct {
	model.ActivityEntry
	Username string
}

// ActivityPage is a slice of the user's activity plus the total count.
type ActivityPage struct {
	Entries []ActivityEntry
	Total   int64
}

// RecentActivity lists the newest entries of the request's user.
func (s *AccountService) RecentActivity(ctx context.Context, req *Request, limit int) (ActivityPage, error) {
	id := req.UserID()
	if id == uuid.Nil {
		return ActivityPage{}, errs.ErrUnauthorized
	}
	list, err := s.activity.ListByUser(ctx, id, limit)
	if err != nil {
		return ActivityPage{}, err
	}
	total, err := s.activity.CountByUser(ctx, id)
	if err != nil {
		return ActivityPage{}, err
	}

	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, e := range list {
		if _, ok := seen[e.UserID]; !ok && e.UserID != uuid.Nil {
			seen[e.UserID] = struct{}{}
			ids = append(ids, e.UserID)
		}
	}
	names, err := s.users.UsernamesByID(ctx, ids)
	if err != nil {
		return ActivityPage{}, err
	}

	page := ActivityPage{Entries: make([]ActivityEntry, len(list)), Total: total}
	for i, e := range list {
		page.Entries[i] = ActivityEntry{ActivityEntry: e, Username: names[e.UserID]}
	}
	return page, nil
}
