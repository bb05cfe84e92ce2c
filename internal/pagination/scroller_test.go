package pagination

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceFetch serves pages out of a fixed slice. Cursors carry the next
// offset, which is all the scroller needs from them.
type sliceFetch struct {
	mu    sync.Mutex
	data  []models.Entity
	calls int

	gate    chan struct{} // when set, each fetch blocks until released
	started chan struct{} // signaled when a gated fetch begins
}

func makeEntities(n int) []models.Entity {
	out := make([]models.Entity, n)
	for i := range out {
		out[i] = models.Entity{ID: fmt.Sprintf("e-%03d", i), Title: fmt.Sprintf("Item %d", i)}
	}
	return out
}

func (f *sliceFetch) fetch(ctx context.Context, cursor string, limit int) (localstore.Page, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		f.started <- struct{}{}
		<-gate
	}

	off := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "off:%d", &off); err != nil {
			return localstore.Page{}, err
		}
	}
	end := off + limit
	if end > len(f.data) {
		end = len(f.data)
	}
	page := localstore.Page{
		Items:   f.data[off:end],
		HasMore: end < len(f.data),
		Total:   len(f.data),
	}
	if page.HasMore {
		page.NextCursor = fmt.Sprintf("off:%d", end)
	}
	return page, nil
}

func (f *sliceFetch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestScroller_AccumulatesPages(t *testing.T) {
	src := &sliceFetch{data: makeEntities(45)}
	s := NewScroller(src.fetch, 20, logging.NewDiscard())
	ctx := context.Background()

	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, 20, s.Len())
	assert.True(t, s.HasMore())

	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, 45, s.Len())
	assert.False(t, s.HasMore())

	// Exhausted: further calls neither fetch nor fail.
	calls := src.callCount()
	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, calls, src.callCount())

	items := s.Items()
	for i, e := range items {
		assert.Equal(t, fmt.Sprintf("e-%03d", i), e.ID, "no gaps or duplicates")
	}
}

func TestScroller_SingleFetchInFlight(t *testing.T) {
	src := &sliceFetch{data: makeEntities(10), gate: make(chan struct{}), started: make(chan struct{})}
	s := NewScroller(src.fetch, 5, logging.NewDiscard())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.LoadMore(ctx) }()

	// Wait for the first fetch to be parked on the gate.
	<-src.started
	assert.True(t, s.Loading())

	// Concurrent triggers are absorbed, not queued.
	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, 1, src.callCount())

	close(src.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 5, s.Len())
	assert.False(t, s.Loading())
}

func TestScroller_ResetDiscardsLateResponse(t *testing.T) {
	gate := make(chan struct{})
	src := &sliceFetch{data: makeEntities(10), gate: gate, started: make(chan struct{})}
	s := NewScroller(src.fetch, 5, logging.NewDiscard())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.LoadMore(ctx) }()
	<-src.started

	s.Reset()
	close(gate)
	require.NoError(t, <-done)

	assert.Zero(t, s.Len(), "response from before the reset is dropped")
	assert.True(t, s.HasMore())

	// The reset list loads cleanly from the top.
	src.mu.Lock()
	src.gate = nil
	src.mu.Unlock()
	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, "e-000", s.Items()[0].ID)
}

func TestScroller_Refresh(t *testing.T) {
	src := &sliceFetch{data: makeEntities(7)}
	s := NewScroller(src.fetch, 5, logging.NewDiscard())
	ctx := context.Background()

	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadMore(ctx))
	assert.Equal(t, 7, s.Len())

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, 5, s.Len(), "refresh restarts from the first page")
	assert.True(t, s.HasMore())
}

func TestScroller_NearEnd(t *testing.T) {
	src := &sliceFetch{data: makeEntities(30)}
	s := NewScroller(src.fetch, 10, logging.NewDiscard())
	require.NoError(t, s.LoadMore(context.Background()))

	assert.False(t, s.NearEnd(2, 3))
	assert.True(t, s.NearEnd(7, 3))
	assert.True(t, s.NearEnd(9, 3))
}
