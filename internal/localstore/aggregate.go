package localstore

import (
	"context"

	"github.com/mbelkin/cardsync/internal/models"
)

// Aggregate folds fn over the effective (non pending-delete) set of one
// kind for one owner. Summaries are always recomputed; nothing derived is
// persisted.
func (s *Store) Aggregate(ctx context.Context, ownerID string, kind models.Kind,
	fn func(models.Summary, models.Entity) models.Summary) (models.Summary, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE owner_id = ? AND kind = ? AND sync_state <> ?`,
		ownerID, string(kind), string(models.SyncPendingDelete))
	if err != nil {
		return models.Summary{}, storageErr("aggregate entities", err)
	}
	defer rows.Close()

	var acc models.Summary
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return models.Summary{}, storageErr("scan entity", err)
		}
		acc = fn(acc, *e)
	}
	if err := rows.Err(); err != nil {
		return models.Summary{}, storageErr("iterate entities", err)
	}
	return acc, nil
}
