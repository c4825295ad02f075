package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/model"
	"github.com/gofrs/uuid/v5"
)

// defaultEventLength applies when neither the event nor its service has an end time.
const defaultEventLength = 2 * time.Hour

var clockLayouts = []string{"15:04:05", "15:04"}

// RegisteredEvents counts events from today on that the request's user answered "can"
// and that have not ended yet.
func (s *AccountService) RegisteredEvents(ctx context.Context, req *Request) (int, error) {
	id := req.UserID()
	if id == uuid.Nil {
		return 0, errs.ErrUnauthorized
	}
	now := s.now().In(s.loc)

	events, err := s.events.UpcomingEvents(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	eventIDs := make([]int64, 0, len(events))
	var serviceIDs []int64
	seen := map[int64]struct{}{}
	for _, e := range events {
		eventIDs = append(eventIDs, e.ID)
		if e.ServiceID == 0 {
			continue
		}
		if _, ok := seen[e.ServiceID]; !ok {
			seen[e.ServiceID] = struct{}{}
			serviceIDs = append(serviceIDs, e.ServiceID)
		}
	}
	answers, err := s.events.Attendance(ctx, id, eventIDs)
	if err != nil {
		return 0, err
	}
	services, err := s.events.ServicesByID(ctx, serviceIDs)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range events {
		if answers[e.ID] != model.AttendanceCan {
			continue
		}
		end, err := eventEnd(e, services[e.ServiceID], s.loc)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", e.ID, err)
		}
		if !now.After(end) {
			n++
		}
	}
	return n, nil
}

// eventEnd resolves when e finishes: its own end time, else the service's, else
// defaultEventLength after its own or the service's start. svc is zero for standalone events.
func eventEnd(e model.Event, svc model.Service, loc *time.Location) (time.Time, error) {
	switch {
	case e.EndTime != "":
		return atClock(e.Date, e.EndTime, loc)
	case svc.EndTime != "":
		return atClock(e.Date, svc.EndTime, loc)
	}
	start := e.StartTime
	if start == "" {
		start = svc.StartTime
	}
	t, err := atClock(e.Date, start, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(defaultEventLength), nil
}

// atClock places a wall-clock time on day's date in loc. An empty clock is midnight.
func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	y, m, d := day.Date()
	if clock == "" {
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", clock)
}
