package repository

import (
	"context"
	"time"

	"github.com/and161185/nevi/internal/model"
	"github.com/gofrs/uuid/v5"
)

// EventRepository reads events, their services and user attendance.
type EventRepository interface {
	// UpcomingEvents returns events dated on or after the day of from.
	UpcomingEvents(ctx context.Context, from time.Time) ([]model.Event, error)
	// ServicesByID loads services keyed by ID. Unknown IDs are absent from the result.
	ServicesByID(ctx context.Context, ids []int64) (map[int64]model.Service, error)
	// Attendance maps event ID to the user's answer for the given events.
	Attendance(ctx context.Context, userID uuid.UUID, eventIDs []int64) (map[int64]string, error)
}
