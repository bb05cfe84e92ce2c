// Package remote defines the backend boundary of the cache and an HTTP/JSON
// implementation of it. Calls fail with the shared error taxonomy
// (common.ErrNetwork is transient and retried by the repository; auth and
// validation errors are terminal). No retry happens inside this package.
package remote

import (
	"context"
	"time"

	"github.com/mbelkin/cardsync/internal/models"
)

// ListQuery selects a page of one owner's records on the backend.
type ListQuery struct {
	Kind         models.Kind
	Page         int // 1-based
	PageSize     int
	UpdatedSince time.Time // optional incremental-pull watermark
}

// List is one backend page. Total may be approximate; HasMore is
// authoritative.
type List struct {
	Items   []models.RemoteEntity
	Total   int
	HasMore bool
}

// Service is the remote CRUD + aggregation contract, keyed by the backend's
// own ids. Implementations must map transport failures to common.ErrNetwork.
type Service interface {
	Create(ctx context.Context, e models.RemoteEntity) (models.RemoteEntity, error)
	Get(ctx context.Context, remoteID string) (models.RemoteEntity, error)
	Update(ctx context.Context, e models.RemoteEntity) (models.RemoteEntity, error)
	Delete(ctx context.Context, remoteID string) error
	ListByOwner(ctx context.Context, ownerID string, q ListQuery) (List, error)
	Summarize(ctx context.Context, ownerID string, kind models.Kind) (models.Summary, error)
	Ping(ctx context.Context) error
}
