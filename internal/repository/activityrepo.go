package repository

import (
	"context"

	"github.com/and161185/nevi/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ActivityRepository stores the activity log.
type ActivityRepository interface {
	// Append writes one entry.
	Append(ctx context.Context, e model.ActivityEntry) error
	// ListByUser returns the newest entries for a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.ActivityEntry, error)
	// CountByUser returns how many entries a user has.
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
