package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/eventbus"
	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/netmon"
	"github.com/mbelkin/cardsync/internal/remote"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory remote.Service with failure injection.
type fakeRemote struct {
	mu       sync.Mutex
	nextID   int
	records  map[string]models.RemoteEntity
	failWith error // forced error for every call when set

	creates, updates, deletes, lists int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]models.RemoteEntity)}
}

func (f *fakeRemote) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeRemote) seed(re models.RemoteEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[re.RemoteID] = re
}

func (f *fakeRemote) Create(ctx context.Context, e models.RemoteEntity) (models.RemoteEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failWith != nil {
		return models.RemoteEntity{}, f.failWith
	}
	f.nextID++
	e.RemoteID = fmt.Sprintf("rc_%d", f.nextID)
	e.UpdatedAt = time.Now().UTC()
	f.records[e.RemoteID] = e
	return e, nil
}

func (f *fakeRemote) Get(ctx context.Context, remoteID string) (models.RemoteEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return models.RemoteEntity{}, f.failWith
	}
	re, ok := f.records[remoteID]
	if !ok {
		return models.RemoteEntity{}, common.ErrNotFound
	}
	return re, nil
}

func (f *fakeRemote) Update(ctx context.Context, e models.RemoteEntity) (models.RemoteEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failWith != nil {
		return models.RemoteEntity{}, f.failWith
	}
	e.UpdatedAt = time.Now().UTC()
	f.records[e.RemoteID] = e
	return e, nil
}

func (f *fakeRemote) Delete(ctx context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.records, remoteID)
	return nil
}

func (f *fakeRemote) ListByOwner(ctx context.Context, ownerID string, q remote.ListQuery) (remote.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.failWith != nil {
		return remote.List{}, f.failWith
	}
	var items []models.RemoteEntity
	for _, re := range f.records {
		if re.OwnerID == ownerID && re.EntityType == string(q.Kind) {
			items = append(items, re)
		}
	}
	return remote.List{Items: items, Total: len(items)}, nil
}

func (f *fakeRemote) Summarize(ctx context.Context, ownerID string, kind models.Kind) (models.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return models.Summary{}, f.failWith
	}
	return models.Summary{Count: len(f.records)}, nil
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWith
}

type fixture struct {
	store   *localstore.Store
	remote  *fakeRemote
	monitor *netmon.Monitor
	bus     *eventbus.Bus
	repo    *Repository
}

var fixtureSeq int

func newFixture(t *testing.T, policy SyncPolicy) *fixture {
	t.Helper()
	fixtureSeq++
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", fixtureSeq)

	store, err := localstore.Open(context.Background(), dsn, logging.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fr := newFakeRemote()
	monitor := netmon.New(fr, time.Hour, logging.NewDiscard())
	bus := eventbus.New(logging.NewDiscard())
	repo := New(store, fr, monitor, bus, policy, logging.NewDiscard())
	t.Cleanup(repo.Close)

	return &fixture{store: store, remote: fr, monitor: monitor, bus: bus, repo: repo}
}

func fastPolicy() SyncPolicy {
	p := DefaultSyncPolicy()
	p.BackoffBase = time.Millisecond
	p.BackoffCap = 5 * time.Millisecond
	p.MaxAttempts = 2
	return p
}

func cardDraft(title string, limit, balance int64) models.Entity {
	details, _ := models.WrapDetails(models.CreditCard{
		Limit:   decimal.NewFromInt(limit),
		Balance: decimal.NewFromInt(balance),
	})
	return models.Entity{
		Kind:    models.KindCreditCard,
		Title:   title,
		Amount:  decimal.NewFromInt(balance),
		Details: details,
	}
}

func TestCreate_OfflineIsLocalOnly(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	assert.Equal(t, models.SyncPendingCreate, e.SyncState)
	assert.Empty(t, e.RemoteID)

	all, err := fx.repo.FindAll(ctx, "user-1", Filter{Kind: models.KindCreditCard})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, e.ID, all[0].ID)

	fx.repo.Wait()
	assert.Zero(t, fx.remote.creates, "no remote traffic while offline")
	assert.Zero(t, fx.remote.lists)
}

func TestCreate_OnlinePushConfirms(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()
	fx.monitor.SetStatus(netmon.StatusOnline)

	var events []eventbus.Event
	var evMu sync.Mutex
	fx.bus.Subscribe(func(ev eventbus.Event) {
		evMu.Lock()
		events = append(events, ev)
		evMu.Unlock()
	})

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	fx.repo.Wait()

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncClean, got.SyncState)
	assert.NotEmpty(t, got.RemoteID)

	evMu.Lock()
	defer evMu.Unlock()
	var types []eventbus.Type
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, eventbus.TypeCreated)
	assert.Contains(t, types, eventbus.TypeSyncComplete)
}

func TestReconnect_DrainsQueue(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	assert.Zero(t, fx.remote.creates)

	synced := make(chan struct{}, 1)
	fx.bus.Subscribe(func(ev eventbus.Event) {
		if ev.Type == eventbus.TypeSyncComplete && ev.EntityID == e.ID {
			synced <- struct{}{}
		}
	})

	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()

	select {
	case <-synced:
	default:
		t.Fatal("expected sync-complete after reconnect")
	}

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncClean, got.SyncState)
	assert.NotEmpty(t, got.RemoteID)
}

func TestUpdate_RollsBackOnValidationError(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()
	fx.monitor.SetStatus(netmon.StatusOnline)

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	fx.repo.Wait()

	fx.remote.fail(common.ErrValidation)

	title := "Renamed"
	updated, err := fx.repo.Update(ctx, e.ID, models.Patch{Title: &title})
	require.NoError(t, err, "optimistic update resolves locally")
	assert.Equal(t, "Renamed", updated.Title)

	fx.repo.Wait()

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Card A", got.Title, "pre-mutation state restored")
	assert.Equal(t, models.SyncClean, got.SyncState)
}

func TestDelete_RollsBackOnAuthError(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()
	fx.monitor.SetStatus(netmon.StatusOnline)

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	fx.repo.Wait()

	// Delete while offline so the hidden state is observable before any
	// push gets a chance to settle it.
	fx.monitor.SetStatus(netmon.StatusOffline)
	require.NoError(t, fx.repo.Delete(ctx, e.ID))

	all, err := fx.repo.FindAll(ctx, "user-1", Filter{Kind: models.KindCreditCard, LocalOnly: true})
	require.NoError(t, err)
	assert.Empty(t, all, "pending delete hides the record immediately")

	fx.remote.fail(common.ErrAuth)
	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()

	all, err = fx.repo.FindAll(ctx, "user-1", Filter{Kind: models.KindCreditCard, LocalOnly: true})
	require.NoError(t, err)
	require.Len(t, all, 1, "record reappears after rollback")
	assert.Equal(t, models.SyncClean, all[0].SyncState)
}

func TestDelete_LocalOnlyRecordIsGoneForGood(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)

	require.NoError(t, fx.repo.Delete(ctx, e.ID))
	_, err = fx.store.Get(ctx, e.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()
	assert.Zero(t, fx.remote.deletes, "nothing to reconcile for a never-pushed record")
}

func TestReconcile_PendingLocalWinsOverNewerRemote(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	// A synced record, locally updated while offline.
	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()
	fx.monitor.SetStatus(netmon.StatusOffline)

	amount := decimal.NewFromInt(500)
	_, err = fx.repo.Update(ctx, e.ID, models.Patch{Amount: &amount})
	require.NoError(t, err)

	// The backend meanwhile has a newer copy with a different balance.
	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	fx.remote.seed(models.RemoteEntity{
		RemoteID: got.RemoteID, ClientRef: e.ID, OwnerID: "user-1",
		EntityType: string(models.KindCreditCard), Label: "Card A",
		Amount: "300", PostedDate: got.OccurredOn.Format("2006-01-02"),
		UpdatedAt: time.Now().Add(time.Hour).UTC(),
	})

	require.NoError(t, fx.repo.pullRemote(ctx, "user-1", models.KindCreditCard))

	all, err := fx.repo.FindAll(ctx, "user-1", Filter{Kind: models.KindCreditCard, LocalOnly: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(all[0].Amount),
		"pending local intent beats the stale remote read")
	assert.Equal(t, models.SyncPendingUpdate, all[0].SyncState)
}

func TestReconcile_NewerRemoteOverwritesClean(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()
	fx.monitor.SetStatus(netmon.StatusOnline)

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	fx.repo.Wait()

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	fx.remote.seed(models.RemoteEntity{
		RemoteID: got.RemoteID, ClientRef: e.ID, OwnerID: "user-1",
		EntityType: string(models.KindCreditCard), Label: "Card A (edited elsewhere)",
		Amount: "300", PostedDate: got.OccurredOn.Format("2006-01-02"),
		UpdatedAt: time.Now().Add(time.Hour).UTC(),
	})

	all, err := fx.repo.FindAll(ctx, "user-1", Filter{Kind: models.KindCreditCard})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Card A (edited elsewhere)", all[0].Title)
	assert.Equal(t, e.ID, all[0].ID, "local identity survives the overwrite")
}

func TestPush_FlagsConflictAfterRetryBudget(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()
	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.remote.fail(common.ErrNetwork)

	conflicts := make(chan eventbus.Event, 1)
	fx.bus.Subscribe(func(ev eventbus.Event) {
		if ev.Type == eventbus.TypeConflict {
			conflicts <- ev
		}
	})

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)
	fx.repo.Wait()

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncConflict, got.SyncState, "never silently dropped")

	select {
	case ev := <-conflicts:
		assert.Equal(t, e.ID, ev.EntityID)
		assert.Error(t, ev.Err)
	default:
		t.Fatal("expected a conflict event")
	}
}

func TestPush_StaysPendingWhenConnectivityAlreadyLost(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)

	// Retry budget exhausted while the monitor already reports offline:
	// not a conflict, the record just waits for reconnect.
	fx.remote.fail(common.ErrNetwork)
	fx.repo.push(ctx, e.ID)

	got, err := fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPendingCreate, got.SyncState)

	fx.remote.fail(nil)
	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()

	got, err = fx.store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncClean, got.SyncState)
	assert.NotEmpty(t, got.RemoteID)
}

func TestFindAll_RemoteFailureDegradesToLocal(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	e, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)

	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()
	fx.remote.fail(common.ErrNetwork)

	all, err := fx.repo.FindAll(ctx, "user-1", Filter{Kind: models.KindCreditCard})
	require.NoError(t, err, "degraded cache-only result, never an error")
	require.Len(t, all, 1)
	assert.Equal(t, e.ID, all[0].ID)
}

func TestSummary_LocalOfflineAndDegradedOnline(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()

	_, err := fx.repo.Create(ctx, "user-1", cardDraft("Card A", 1000, 200))
	require.NoError(t, err)

	local, err := fx.repo.Summary(ctx, "user-1", models.KindCreditCard)
	require.NoError(t, err)
	assert.Equal(t, 1, local.Count)
	assert.True(t, decimal.NewFromInt(1000).Equal(local.Limit))
	assert.True(t, decimal.NewFromInt(20).Equal(local.Utilization()))

	fx.monitor.SetStatus(netmon.StatusOnline)
	fx.repo.Wait()
	fx.remote.fail(common.ErrNetwork)

	degraded, err := fx.repo.Summary(ctx, "user-1", models.KindCreditCard)
	require.NoError(t, err, "failing remote degrades to the local aggregate")
	assert.Equal(t, 1, degraded.Count)
}

func TestFindByRangePaginated_AugmentsOnlyFirstPage(t *testing.T) {
	fx := newFixture(t, fastPolicy())
	ctx := context.Background()
	fx.monitor.SetStatus(netmon.StatusOnline)

	for i := 0; i < 5; i++ {
		_, err := fx.repo.Create(ctx, "user-1", cardDraft(fmt.Sprintf("Card %d", i), 1000, 100))
		require.NoError(t, err)
	}
	fx.repo.Wait()

	listsBefore := fx.remote.lists
	page, err := fx.repo.FindByRangePaginated(ctx, "user-1", Filter{Kind: models.KindCreditCard}, "", 2)
	require.NoError(t, err)
	assert.Greater(t, fx.remote.lists, listsBefore, "first page pulls remote state")

	listsAfter := fx.remote.lists
	_, err = fx.repo.FindByRangePaginated(ctx, "user-1", Filter{Kind: models.KindCreditCard}, page.NextCursor, 2)
	require.NoError(t, err)
	assert.Equal(t, listsAfter, fx.remote.lists, "later pages stay on the stable local scan")
}
