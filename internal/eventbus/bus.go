// Package eventbus provides a process-wide synchronous publish/subscribe
// channel. Mutations (local or remote-confirmed) notify interested readers
// through it without coupling them to the repository.
package eventbus

import (
	"context"
	"sync"

	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
)

// Type names a notification category.
type Type string

const (
	TypeCreated      Type = "created"
	TypeUpdated      Type = "updated"
	TypeDeleted      Type = "deleted"
	TypeSyncComplete Type = "sync-complete"
	TypeRolledBack   Type = "rolled-back"
	TypeConflict     Type = "conflict"
)

// Event describes a single mutation or sync outcome.
type Event struct {
	Type     Type
	Kind     models.Kind
	EntityID string
	OwnerID  string
	Err      error
}

// Handler receives events. A panicking handler is recovered and logged,
// never propagated to the emitter or to sibling handlers.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus delivers events synchronously, in subscription order. There is no
// persistence and no replay: a subscriber registered after an event was
// emitted never sees it.
type Bus struct {
	logger logging.Logger

	mu     sync.Mutex
	nextID int
	subs   []subscription
}

func New(logger logging.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h and returns an idempotent unsubscribe function.
// Calling it twice is a no-op, never an error.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers e to every current subscriber in subscription order.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		b.dispatch(s, e)
	}
}

func (b *Bus) dispatch(s subscription, e Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error(context.Background(), "event handler panicked",
				"event", string(e.Type), "entity_id", e.EntityID, "panic", p)
		}
	}()
	s.fn(e)
}
