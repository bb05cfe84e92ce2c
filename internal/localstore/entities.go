package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/dbx"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/shopspring/decimal"
)

const entityColumns = `id, owner_id, kind, title, amount, occurred_on, details,
	remote_id, sync_state, updated_at_local, updated_at_remote`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var (
		e               models.Entity
		amount          string
		occurredOn      int64
		details         sql.NullString
		updatedAtLocal  int64
		updatedAtRemote int64
	)
	err := row.Scan(&e.ID, &e.OwnerID, &e.Kind, &e.Title, &amount, &occurredOn,
		&details, &e.RemoteID, &e.SyncState, &updatedAtLocal, &updatedAtRemote)
	if err != nil {
		return nil, err
	}

	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	e.OccurredOn = time.UnixMilli(occurredOn).UTC()
	if details.Valid {
		e.Details = []byte(details.String)
	}
	e.UpdatedAtLocal = time.UnixMilli(updatedAtLocal).UTC()
	if updatedAtRemote != 0 {
		e.UpdatedAtRemote = time.UnixMilli(updatedAtRemote).UTC()
	}
	return &e, nil
}

// Get returns a record by id regardless of its sync state; repository code
// needs pending-delete rows for reconciliation. Effective reads go through
// Query/Aggregate, which hide them.
func (s *Store) Get(ctx context.Context, id string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get entity", err)
	}
	return e, nil
}

// GetByRemoteID returns the record acknowledged under the given backend id.
func (s *Store) GetByRemoteID(ctx context.Context, remoteID string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE remote_id = ?`, remoteID)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("remote id %s: %w", remoteID, common.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get entity by remote id", err)
	}
	return e, nil
}

// Put upserts e by id and stamps UpdatedAtLocal. The write is atomic per
// record: it either fully applies or is fully rejected.
func (s *Store) Put(ctx context.Context, e *models.Entity) error {
	e.UpdatedAtLocal = time.Now().UTC()

	var remoteMs int64
	if !e.UpdatedAtRemote.IsZero() {
		remoteMs = e.UpdatedAtRemote.UnixMilli()
	}

	query := `INSERT INTO entities
		(id, owner_id, kind, title, amount, occurred_on, details,
		 remote_id, sync_state, updated_at_local, updated_at_remote)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			kind = excluded.kind,
			title = excluded.title,
			amount = excluded.amount,
			occurred_on = excluded.occurred_on,
			details = excluded.details,
			remote_id = excluded.remote_id,
			sync_state = excluded.sync_state,
			updated_at_local = excluded.updated_at_local,
			updated_at_remote = excluded.updated_at_remote`

	var details any
	if e.Details != nil {
		details = string(e.Details)
	}

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.OwnerID, string(e.Kind), e.Title, e.Amount.String(),
		e.OccurredOn.UnixMilli(), details, e.RemoteID, string(e.SyncState),
		e.UpdatedAtLocal.UnixMilli(), remoteMs)
	if err != nil {
		return storageErr("upsert entity", err)
	}
	return nil
}

// Delete removes a record. A record the backend has acknowledged is soft
// deleted (sync_state = pending_delete, hidden from effective reads but kept
// for the push queue); a record never pushed has nothing to reconcile and is
// removed outright.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var remoteID string
		err := tx.QueryRowContext(ctx,
			`SELECT remote_id FROM entities WHERE id = ?`, id).Scan(&remoteID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if remoteID == "" {
			_, err = tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE entities SET sync_state = ?, updated_at_local = ? WHERE id = ?`,
			string(models.SyncPendingDelete), time.Now().UTC().UnixMilli(), id)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return storageErr("delete entity", err)
	}
	return nil
}

// Purge removes a record physically, bypassing the soft-delete path. Used
// once the backend has confirmed a delete, or to roll back a pending create.
func (s *Store) Purge(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
		return storageErr("purge entity", err)
	}
	return nil
}

// AllPending returns every record awaiting a push, oldest local change
// first, so the retry queue drains in a stable order.
func (s *Store) AllPending(ctx context.Context) ([]models.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE sync_state IN (?, ?, ?)
		 ORDER BY updated_at_local ASC, id ASC`,
		string(models.SyncPendingCreate),
		string(models.SyncPendingUpdate),
		string(models.SyncPendingDelete))
	if err != nil {
		return nil, storageErr("select pending entities", err)
	}
	defer rows.Close()

	var result []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, storageErr("scan pending entity", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate pending entities", err)
	}
	return result, nil
}

// CountPending reports how many records await a push.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE sync_state IN (?, ?, ?)`,
		string(models.SyncPendingCreate),
		string(models.SyncPendingUpdate),
		string(models.SyncPendingDelete)).Scan(&n)
	if err != nil {
		return 0, storageErr("count pending entities", err)
	}
	return n, nil
}

// EvictClean purges clean, remote-acknowledged records older than the cutoff.
// Pending and conflict rows are never evicted.
func (s *Store) EvictClean(ctx context.Context, ownerID string, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entities
		 WHERE owner_id = ? AND sync_state = ? AND remote_id <> '' AND occurred_on < ?`,
		ownerID, string(models.SyncClean), olderThan.UTC().UnixMilli())
	if err != nil {
		return 0, storageErr("evict clean entities", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("evict rows affected", err)
	}
	return n, nil
}
