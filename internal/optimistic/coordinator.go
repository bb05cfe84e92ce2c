// Package optimistic keeps a view-facing entity list that reflects local
// mutations the instant they are requested, before the backing repository
// has settled them.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mbelkin/cardsync/internal/eventbus"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/repository"
)

// Store is the slice of repository behaviour the coordinator drives.
type Store interface {
	Create(ctx context.Context, ownerID string, draft models.Entity) (models.Entity, error)
	Update(ctx context.Context, id string, patch models.Patch) (models.Entity, error)
	Delete(ctx context.Context, id string) error
	FindAll(ctx context.Context, ownerID string, f repository.Filter) ([]models.Entity, error)
}

// Coordinator maintains the visible list for one owner and kind. Mutations
// show up in Entities() immediately; if the repository rejects one, the
// list snaps back to its previous shape. Background sync outcomes arrive
// as bus events and trigger a reload from the repository's truth.
type Coordinator struct {
	store   Store
	ownerID string
	kind    models.Kind
	logger  logging.Logger

	mu      sync.Mutex
	visible []models.Entity

	unsubscribe func()
}

func New(store Store, bus *eventbus.Bus, ownerID string, kind models.Kind, logger logging.Logger) *Coordinator {
	c := &Coordinator{
		store:   store,
		ownerID: ownerID,
		kind:    kind,
		logger:  logger,
	}
	c.unsubscribe = bus.Subscribe(func(ev eventbus.Event) {
		if ev.OwnerID != ownerID || ev.Kind != kind {
			return
		}
		switch ev.Type {
		case eventbus.TypeSyncComplete, eventbus.TypeRolledBack, eventbus.TypeConflict:
			ctx := context.Background()
			if err := c.Reload(ctx); err != nil {
				logger.Warn(ctx, "reload after sync event failed", "event", string(ev.Type), "error", err)
			}
		}
	})
	return c
}

// Close detaches the coordinator from the event bus.
func (c *Coordinator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Entities returns a copy of the currently visible list.
func (c *Coordinator) Entities() []models.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Entity, len(c.visible))
	copy(out, c.visible)
	return out
}

// Reload replaces the visible list with the repository's current local
// state. Remote augmentation is the repository's concern, not the view's.
func (c *Coordinator) Reload(ctx context.Context) error {
	items, err := c.store.FindAll(ctx, c.ownerID, repository.Filter{Kind: c.kind, LocalOnly: true})
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	c.mu.Lock()
	c.visible = items
	c.mu.Unlock()
	return nil
}

// Create shows a placeholder at the head of the list, then swaps it for
// the stored entity. If the repository rejects the draft the placeholder
// disappears again.
func (c *Coordinator) Create(ctx context.Context, draft models.Entity) (models.Entity, error) {
	placeholder := draft
	placeholder.ID = "tmp-" + uuid.NewString()
	placeholder.OwnerID = c.ownerID
	placeholder.Kind = c.kind

	c.mu.Lock()
	c.visible = append([]models.Entity{placeholder}, c.visible...)
	c.mu.Unlock()

	draft.Kind = c.kind
	stored, err := c.store.Create(ctx, c.ownerID, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.index(placeholder.ID)
	if err != nil {
		if idx >= 0 {
			c.visible = append(c.visible[:idx], c.visible[idx+1:]...)
		}
		return models.Entity{}, err
	}
	if idx >= 0 {
		c.visible[idx] = stored
	}
	return stored, nil
}

// Update applies the patch to the visible copy first, then asks the
// repository; on rejection the previous copy is restored.
func (c *Coordinator) Update(ctx context.Context, id string, patch models.Patch) (models.Entity, error) {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return c.store.Update(ctx, id, patch)
	}
	before := c.visible[idx]
	preview := *before.Clone()
	patch.Apply(&preview)
	c.visible[idx] = preview
	c.mu.Unlock()

	stored, err := c.store.Update(ctx, id, patch)

	c.mu.Lock()
	defer c.mu.Unlock()
	idx = c.index(id)
	if err != nil {
		if idx >= 0 {
			c.visible[idx] = before
		}
		return models.Entity{}, err
	}
	if idx >= 0 {
		c.visible[idx] = stored
	}
	return stored, nil
}

// Delete removes the entity from view immediately; a repository rejection
// puts it back where it was.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return c.store.Delete(ctx, id)
	}
	removed := c.visible[idx]
	c.visible = append(c.visible[:idx:idx], c.visible[idx+1:]...)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		c.mu.Lock()
		at := idx
		if at > len(c.visible) {
			at = len(c.visible)
		}
		rest := append([]models.Entity{removed}, c.visible[at:]...)
		c.visible = append(c.visible[:at], rest...)
		c.mu.Unlock()
		return err
	}
	return nil
}

// index locates an id in the visible list. Caller holds c.mu.
func (c *Coordinator) index(id string) int {
	for i := range c.visible {
		if c.visible[i].ID == id {
			return i
		}
	}
	return -1
}
