// Package repository implements the local-first policy engine. Reads are
// always served from the local store and never block on the network; when
// online they are augmented with a remote pull reconciled under a
// pending-wins, whole-record last-writer-wins rule. Writes apply locally
// first (the optimistic result returned to the caller) and are pushed to the
// backend in the background with bounded retries.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/mbelkin/cardsync/internal/eventbus"
	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/netmon"
	"github.com/mbelkin/cardsync/internal/remote"
)

// pullPageSize is the backend page size used during reconciliation pulls.
const pullPageSize = 100

// SyncPolicy bounds the background push. After MaxAttempts retries of a
// transient failure the record is flagged conflict and left for manual
// resolution; it is never silently dropped.
type SyncPolicy struct {
	MaxAttempts uint64
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Retention   time.Duration
}

func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		MaxAttempts: 5,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  30 * time.Second,
		Retention:   90 * 24 * time.Hour,
	}
}

// Filter narrows reads. LocalOnly disables remote augmentation even when
// online.
type Filter struct {
	Kind      models.Kind
	From      time.Time
	To        time.Time
	LocalOnly bool
}

type Repository struct {
	store   *localstore.Store
	remote  remote.Service
	monitor *netmon.Monitor
	bus     *eventbus.Bus
	policy  SyncPolicy
	logger  logging.Logger

	locks *keyedMutex

	snapMu    sync.Mutex
	snapshots map[string]*models.Entity // pre-mutation state; nil entry = pending create

	drainMu sync.Mutex // one queue drain at a time
	pushes  sync.WaitGroup

	stopListener func()
}

// New wires a repository. All collaborators are injected; nothing ambient.
// The repository registers itself on the monitor so the push queue drains
// whenever connectivity comes back.
func New(store *localstore.Store, rs remote.Service, monitor *netmon.Monitor,
	bus *eventbus.Bus, policy SyncPolicy, logger logging.Logger) *Repository {

	r := &Repository{
		store:     store,
		remote:    rs,
		monitor:   monitor,
		bus:       bus,
		policy:    policy,
		logger:    logger,
		locks:     newKeyedMutex(),
		snapshots: make(map[string]*models.Entity),
	}

	r.stopListener = monitor.AddListener(func(s netmon.Status) {
		if s != netmon.StatusOnline {
			return
		}
		r.pushes.Add(1)
		go func() {
			defer r.pushes.Done()
			r.DrainPending(context.Background())
		}()
	})

	return r
}

// Close detaches the repository from the monitor and waits for in-flight
// pushes to settle.
func (r *Repository) Close() {
	r.stopListener()
	r.pushes.Wait()
}

// Wait blocks until every scheduled background push has finished. Intended
// for shutdown and tests.
func (r *Repository) Wait() {
	r.pushes.Wait()
}

// FindAll returns the owner's effective records. Offline (or with LocalOnly
// set) this is purely local; online it first reconciles a remote pull into
// the store. A failing remote never fails the read: the local result is
// returned instead.
func (r *Repository) FindAll(ctx context.Context, ownerID string, f Filter) ([]models.Entity, error) {
	r.augment(ctx, ownerID, f)

	page, err := r.store.Query(ctx, localstore.Query{
		OwnerID: ownerID,
		Kind:    f.Kind,
		From:    f.From,
		To:      f.To,
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// FindByRangePaginated returns one page of the owner's effective records.
// Remote augmentation runs only for the first page (empty cursor) so a
// paging sequence stays stable while it is walked.
func (r *Repository) FindByRangePaginated(ctx context.Context, ownerID string, f Filter,
	cursor string, limit int) (localstore.Page, error) {

	if cursor == "" {
		r.augment(ctx, ownerID, f)
	}
	return r.store.Query(ctx, localstore.Query{
		OwnerID: ownerID,
		Kind:    f.Kind,
		From:    f.From,
		To:      f.To,
		Limit:   limit,
		Cursor:  cursor,
	})
}

// augment pulls remote state into the local store, best effort. A degraded
// cache-only result is always preferable to an error.
func (r *Repository) augment(ctx context.Context, ownerID string, f Filter) {
	if f.LocalOnly || !r.monitor.Online() {
		return
	}
	if err := r.pullRemote(ctx, ownerID, f.Kind); err != nil {
		r.logger.Warn(ctx, "remote pull failed, serving local data",
			"owner_id", ownerID, "kind", string(f.Kind), "error", err)
	}
}

// Summary recomputes the aggregate from local state and, when online,
// prefers the backend's own aggregation. A failing remote degrades to the
// local figure.
func (r *Repository) Summary(ctx context.Context, ownerID string, kind models.Kind) (models.Summary, error) {
	local, err := r.store.Aggregate(ctx, ownerID, kind, models.FoldFor(kind))
	if err != nil {
		return models.Summary{}, err
	}

	if !r.monitor.Online() {
		return local, nil
	}
	remoteSummary, err := r.remote.Summarize(ctx, ownerID, kind)
	if err != nil {
		r.logger.Warn(ctx, "remote summary failed, using local aggregate",
			"owner_id", ownerID, "kind", string(kind), "error", err)
		return local, nil
	}
	return remoteSummary, nil
}

// PendingCount reports how many records await a push. The UI renders its
// "pending sync" indicator from this plus the monitor status.
func (r *Repository) PendingCount(ctx context.Context) (int, error) {
	return r.store.CountPending(ctx)
}

// Maintain purges clean, remote-acknowledged records beyond the retention
// window. Pending and conflict records are never evicted.
func (r *Repository) Maintain(ctx context.Context, ownerID string) error {
	cutoff := time.Now().Add(-r.policy.Retention)
	n, err := r.store.EvictClean(ctx, ownerID, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Info(ctx, "evicted synced records beyond retention",
			"owner_id", ownerID, "count", n)
	}
	return nil
}

func (r *Repository) rememberSnapshot(id string, snap *models.Entity) {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	// The earliest pre-mutation state wins: chained updates before the sync
	// settles must roll back all the way.
	if _, ok := r.snapshots[id]; !ok {
		r.snapshots[id] = snap
	}
}

func (r *Repository) takeSnapshot(id string) (*models.Entity, bool) {
	r.snapMu.Lock()
	defer r.snapMu.Unlock()
	snap, ok := r.snapshots[id]
	delete(r.snapshots, id)
	return snap, ok
}
