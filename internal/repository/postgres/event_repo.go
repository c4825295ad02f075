package postgres

import (
	"context"
	"time"

	"github.com/and161185/nevi/internal/model"
	rs "github.com/and161185/nevi/internal/recordstore"
	"github.com/gofrs/uuid/v5"
)

// EventRepo implements EventRepository on the record store.
type EventRepo struct{ store *rs.Store }

// NewEventRepo constructs an event repository.
func NewEventRepo(store *rs.Store) *EventRepo { return &EventRepo{store: store} }

// UpcomingEvents returns events dated on or after from's calendar day, earliest first.
func (r *EventRepo) UpcomingEvents(ctx context.Context, from time.Time) ([]model.Event, error) {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := r.store.FetchAll(ctx, eventsTable, eventColumns, rs.Gte(colEventDate, day), rs.OrderBy(colEventDate, false))
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Event{
			ID:        int64Of(row[string(colEventID)]),
			ServiceID: int64Of(row[string(colServiceRef)]),
			Date:      timeOf(row[string(colEventDate)]),
			StartTime: str(row[string(colStartTime)]),
			EndTime:   str(row[string(colEndTime)]),
		})
	}
	return out, nil
}

// ServicesByID loads the listed services in one query.
func (r *EventRepo) ServicesByID(ctx context.Context, ids []int64) (map[int64]model.Service, error) {
	out := map[int64]model.Service{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.store.FetchAll(ctx, servicesTable, serviceColumns, rs.In(colServiceID, int64sToAny(ids)...))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s := model.Service{
			ID:        int64Of(row[string(colServiceID)]),
			Name:      str(row[string(colServiceName)]),
			StartTime: str(row[string(colStartTime)]),
			EndTime:   str(row[string(colEndTime)]),
		}
		out[s.ID] = s
	}
	return out, nil
}

// Attendance returns userID's answers for eventIDs. Events without an answer are absent.
func (r *EventRepo) Attendance(ctx context.Context, userID uuid.UUID, eventIDs []int64) (map[int64]string, error) {
	if len(eventIDs) == 0 {
		return map[int64]string{}, nil
	}
	return rs.FetchKeyed[int64, string](ctx, r.store, scheduleTable,
		rs.Columns(colScheduleEvent, colAttendance),
		rs.And(rs.Eq(colScheduleUser, userID), rs.In(colScheduleEvent, int64sToAny(eventIDs)...)),
		colScheduleEvent, colAttendance,
	)
}

func int64sToAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
