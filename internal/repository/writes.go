package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/eventbus"
	"github.com/mbelkin/cardsync/internal/models"
)

// Create applies the draft locally in the pending_create state and returns
// the stored record immediately; this is the optimistic result. The push to
// the backend happens in the background when online, or on the next
// reconnect otherwise.
func (r *Repository) Create(ctx context.Context, ownerID string, draft models.Entity) (models.Entity, error) {
	e := draft
	e.ID = uuid.NewString()
	e.OwnerID = ownerID
	e.RemoteID = ""
	e.SyncState = models.SyncPendingCreate
	if e.OccurredOn.IsZero() {
		e.OccurredOn = time.Now()
	}
	e.OccurredOn = models.Day(e.OccurredOn)

	unlock := r.locks.Lock(e.ID)
	defer unlock()

	if err := r.store.Put(ctx, &e); err != nil {
		return models.Entity{}, fmt.Errorf("create %s: %w", e.Kind, err)
	}
	r.rememberSnapshot(e.ID, nil) // nothing to restore; rollback removes the row

	r.bus.Emit(eventbus.Event{Type: eventbus.TypeCreated, Kind: e.Kind, EntityID: e.ID, OwnerID: ownerID})
	r.schedulePush(e.ID)
	return e, nil
}

// Update patches the record locally and returns the patched state. A record
// still awaiting its first push stays pending_create; anything else becomes
// pending_update.
func (r *Repository) Update(ctx context.Context, id string, patch models.Patch) (models.Entity, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	cur, err := r.store.Get(ctx, id)
	if err != nil {
		return models.Entity{}, err
	}
	if cur.SyncState == models.SyncPendingDelete {
		return models.Entity{}, fmt.Errorf("update %s: record is being deleted: %w", id, common.ErrNotFound)
	}

	snap := cur.Clone()
	patch.Apply(cur)
	if cur.SyncState != models.SyncPendingCreate {
		cur.SyncState = models.SyncPendingUpdate
	}

	if err := r.store.Put(ctx, cur); err != nil {
		return models.Entity{}, fmt.Errorf("update %s: %w", id, err)
	}
	r.rememberSnapshot(id, snap)

	r.bus.Emit(eventbus.Event{Type: eventbus.TypeUpdated, Kind: cur.Kind, EntityID: id, OwnerID: cur.OwnerID})
	r.schedulePush(id)
	return *cur, nil
}

// Delete hides the record from effective reads immediately. Acknowledged
// records go through the soft-delete push path; local-only records vanish
// outright with nothing to reconcile.
func (r *Repository) Delete(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	cur, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}

	snap := cur.Clone()
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	r.bus.Emit(eventbus.Event{Type: eventbus.TypeDeleted, Kind: cur.Kind, EntityID: id, OwnerID: cur.OwnerID})

	if cur.RemoteID == "" {
		// Hard delete, no push needed. Forget any snapshot from earlier
		// mutations of this record.
		r.snapMu.Lock()
		delete(r.snapshots, id)
		r.snapMu.Unlock()
		return nil
	}

	r.rememberSnapshot(id, snap)
	r.schedulePush(id)
	return nil
}

// schedulePush starts a background push when online. Offline, the record
// stays pending in the store and is picked up by the reconnect drain.
func (r *Repository) schedulePush(id string) {
	if !r.monitor.Online() {
		return
	}
	r.pushes.Add(1)
	go func() {
		defer r.pushes.Done()
		r.push(context.Background(), id)
	}()
}
