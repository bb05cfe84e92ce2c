package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/eventbus"
	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/netmon"
	"github.com/mbelkin/cardsync/internal/remote"
	"github.com/sethvargo/go-retry"
)

// DrainPending pushes every record awaiting sync, oldest local change
// first. Only one drain runs at a time; reconnect notifications and manual
// sync calls both funnel through here.
func (r *Repository) DrainPending(ctx context.Context) {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	pending, err := r.store.AllPending(ctx)
	if err != nil {
		r.logger.Error(ctx, "cannot list pending records", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	r.logger.Info(ctx, "draining sync queue", "pending", len(pending))
	for i := range pending {
		r.push(ctx, pending[i].ID)
	}
}

// push reconciles one record with the backend. Transient failures retry with
// capped fibonacci backoff up to the policy's bound; exhaustion while the
// monitor still reports online flags the record conflict, while exhaustion
// after connectivity was already lost leaves it pending for the reconnect
// drain. Non-retryable rejections roll the local optimistic state back to
// its pre-mutation snapshot.
func (r *Repository) push(ctx context.Context, id string) {
	unlock := r.locks.Lock(id)
	defer unlock()

	e, err := r.store.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return // already purged or rolled back
	}
	if err != nil {
		r.logger.Error(ctx, "cannot load record for push", "entity_id", id, "error", err)
		return
	}
	if !e.SyncState.Pending() {
		return
	}

	backoff := retry.NewFibonacci(r.policy.BackoffBase)
	backoff = retry.WithCappedDuration(r.policy.BackoffCap, backoff)
	backoff = retry.WithMaxRetries(r.policy.MaxAttempts, backoff)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pushErr := r.pushOnce(ctx, e)
		if errors.Is(pushErr, common.ErrNetwork) {
			return retry.RetryableError(pushErr)
		}
		return pushErr
	})

	switch {
	case err == nil:
		r.snapMu.Lock()
		delete(r.snapshots, id)
		r.snapMu.Unlock()
		r.bus.Emit(eventbus.Event{
			Type: eventbus.TypeSyncComplete, Kind: e.Kind, EntityID: id, OwnerID: e.OwnerID,
		})

	case errors.Is(err, common.ErrNetwork):
		wasOnline := r.monitor.Online()
		r.monitor.SetStatus(netmon.StatusOffline)
		if !wasOnline {
			// Connectivity was already gone: the record stays pending and
			// the reconnect drain retries it.
			r.logger.Debug(ctx, "push deferred until reconnect", "entity_id", id)
			return
		}
		r.flagConflict(ctx, e, err)

	default:
		r.rollback(ctx, e, err)
	}
}

// pushOnce performs the single remote call appropriate for the record's
// pending state and applies the confirmation locally.
func (r *Repository) pushOnce(ctx context.Context, e *models.Entity) error {
	switch e.SyncState {
	case models.SyncPendingCreate:
		confirmed, err := r.remote.Create(ctx, models.ToRemote(e))
		if err != nil {
			return err
		}
		return r.confirm(ctx, e, confirmed)

	case models.SyncPendingUpdate:
		if e.RemoteID == "" {
			// Updated before the first push ever succeeded; create covers it.
			confirmed, err := r.remote.Create(ctx, models.ToRemote(e))
			if err != nil {
				return err
			}
			return r.confirm(ctx, e, confirmed)
		}
		confirmed, err := r.remote.Update(ctx, models.ToRemote(e))
		if err != nil {
			return err
		}
		return r.confirm(ctx, e, confirmed)

	case models.SyncPendingDelete:
		err := r.remote.Delete(ctx, e.RemoteID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		// Confirmed (or already gone remotely): drop the tombstone.
		return r.store.Purge(ctx, e.ID)

	default:
		return nil
	}
}

func (r *Repository) confirm(ctx context.Context, e *models.Entity, confirmed models.RemoteEntity) error {
	e.RemoteID = confirmed.RemoteID
	e.SyncState = models.SyncClean
	if !confirmed.UpdatedAt.IsZero() {
		e.UpdatedAtRemote = confirmed.UpdatedAt
	}
	if err := r.store.Put(ctx, e); err != nil {
		return fmt.Errorf("apply confirmation: %w", err)
	}
	return nil
}

// flagConflict marks a record whose push could not be reconciled within the
// retry budget. It stays visible and actionable; nothing is dropped.
func (r *Repository) flagConflict(ctx context.Context, e *models.Entity, cause error) {
	e.SyncState = models.SyncConflict
	if err := r.store.Put(ctx, e); err != nil {
		r.logger.Error(ctx, "cannot flag conflict", "entity_id", e.ID, "error", err)
		return
	}
	r.logger.Warn(ctx, "push retries exhausted, record flagged for manual resolution",
		"entity_id", e.ID, "error", cause)
	r.bus.Emit(eventbus.Event{
		Type: eventbus.TypeConflict, Kind: e.Kind, EntityID: e.ID, OwnerID: e.OwnerID, Err: cause,
	})
}

// rollback restores the pre-mutation snapshot after a non-retryable remote
// rejection. A pending create has no prior state, so the row is removed.
func (r *Repository) rollback(ctx context.Context, e *models.Entity, cause error) {
	snap, ok := r.takeSnapshot(e.ID)

	var err error
	if !ok || snap == nil {
		err = r.store.Purge(ctx, e.ID)
	} else {
		err = r.store.Put(ctx, snap)
	}
	if err != nil {
		r.logger.Error(ctx, "rollback failed", "entity_id", e.ID, "error", err)
		return
	}

	r.logger.Warn(ctx, "remote rejected write, optimistic state rolled back",
		"entity_id", e.ID, "error", cause)
	r.bus.Emit(eventbus.Event{
		Type: eventbus.TypeRolledBack, Kind: e.Kind, EntityID: e.ID, OwnerID: e.OwnerID, Err: cause,
	})
}

// pullRemote walks the backend's pages for one owner/kind and reconciles
// them into the local store, then advances the incremental watermark.
func (r *Repository) pullRemote(ctx context.Context, ownerID string, kind models.Kind) error {
	since := r.loadWatermark(ctx, ownerID, kind)

	page := 1
	for {
		list, err := r.remote.ListByOwner(ctx, ownerID, remote.ListQuery{
			Kind: kind, Page: page, PageSize: pullPageSize, UpdatedSince: since,
		})
		if err != nil {
			if errors.Is(err, common.ErrNetwork) {
				r.monitor.SetStatus(netmon.StatusOffline)
			}
			return err
		}
		for _, re := range list.Items {
			if err := r.reconcile(ctx, re); err != nil {
				r.logger.Warn(ctx, "cannot reconcile remote record",
					"remote_id", re.RemoteID, "error", err)
			}
		}
		if !list.HasMore {
			break
		}
		page++
	}

	r.saveWatermark(ctx, ownerID, kind, time.Now().UTC())
	return nil
}

// reconcile merges one remote record under the pending-wins rule: local
// pending intent always beats a remote read (the next push resolves it),
// otherwise the newer remote timestamp overwrites the whole record.
func (r *Repository) reconcile(ctx context.Context, re models.RemoteEntity) error {
	local, err := r.store.GetByRemoteID(ctx, re.RemoteID)
	if errors.Is(err, common.ErrNotFound) {
		if re.Deleted {
			return nil // tombstone for a record we never had
		}
		e, err := models.FromRemote(re)
		if err != nil {
			return err
		}
		return r.store.Put(ctx, e)
	}
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(local.ID)
	defer unlock()

	// Re-read under the lock: a concurrent push may have settled the record
	// between lookup and here.
	local, err = r.store.Get(ctx, local.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}

	if local.SyncState.Pending() || local.SyncState == models.SyncConflict {
		return nil
	}

	if re.Deleted {
		return r.store.Purge(ctx, local.ID)
	}

	if !re.UpdatedAt.After(local.UpdatedAtRemote) {
		return nil
	}

	e, err := models.FromRemote(re)
	if err != nil {
		return err
	}
	e.ID = local.ID // keep the local identity stable across overwrites
	return r.store.Put(ctx, e)
}

func watermarkKey(ownerID string, kind models.Kind) string {
	return localstore.MetaSyncedAt + ":" + ownerID + ":" + string(kind)
}

func (r *Repository) loadWatermark(ctx context.Context, ownerID string, kind models.Kind) time.Time {
	raw, err := r.store.GetMeta(ctx, watermarkKey(ownerID, kind))
	if err != nil || raw == nil {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}
	}
	return ts
}

func (r *Repository) saveWatermark(ctx context.Context, ownerID string, kind models.Kind, ts time.Time) {
	if err := r.store.SetMeta(ctx, watermarkKey(ownerID, kind), []byte(ts.Format(time.RFC3339))); err != nil {
		r.logger.Warn(ctx, "cannot persist sync watermark", "owner_id", ownerID, "error", err)
	}
}
