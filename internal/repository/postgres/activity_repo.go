package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/nevi/internal/model"
	rs "github.com/and161185/nevi/internal/recordstore"
	"github.com/gofrs/uuid/v5"
)

// ActivityRepo implements ActivityRepository on the record store.
type ActivityRepo struct{ store *rs.Store }

// NewActivityRepo constructs an activity repository.
func NewActivityRepo(store *rs.Store) *ActivityRepo { return &ActivityRepo{store: store} }

// Append inserts a log row.
func (r *ActivityRepo) Append(ctx context.Context, e model.ActivityEntry) error {
	return r.store.Insert(ctx, logsTable,
		[]rs.Column{colDateTime, colUserID, colUserIP, colUserOS, colUserBrowser, colPage, colActionType, colActivityStatus, colDescription},
		[]any{e.At, nullableUUID(e.UserID), e.IP, e.OS, e.Browser, e.Page, e.Action, e.Status, e.Description},
	)
}

// ListByUser returns up to limit entries for userID, newest first.
func (r *ActivityRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.ActivityEntry, error) {
	rows, err := r.store.FetchAll(ctx, logsTable, logColumns, rs.Eq(colUserID, userID),
		rs.OrderBy(colDateTime, true), rs.Limit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]model.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		uid, err := uuidOf(row[string(colUserID)])
		if err != nil {
			return nil, fmt.Errorf("logs.userID: %w", err)
		}
		out = append(out, model.ActivityEntry{
			ID:          int64Of(row[string(colLogID)]),
			At:          timeOf(row[string(colDateTime)]),
			UserID:      uid,
			IP:          str(row[string(colUserIP)]),
			OS:          str(row[string(colUserOS)]),
			Browser:     str(row[string(colUserBrowser)]),
			Page:        str(row[string(colPage)]),
			Action:      str(row[string(colActionType)]),
			Status:      str(row[string(colActivityStatus)]),
			Description: str(row[string(colDescription)]),
		})
	}
	return out, nil
}

// CountByUser counts log rows of userID.
func (r *ActivityRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.store.Count(ctx, logsTable, rs.Columns(colLogID), rs.Eq(colUserID, userID))
}
