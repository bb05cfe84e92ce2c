package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
)

// FetchFunc loads one page of entities for a cursor. An empty cursor means
// the start of the sequence.
type FetchFunc func(ctx context.Context, cursor string, limit int) (localstore.Page, error)

// Scroller accumulates keyset pages into a single forward-only list, the
// way an endless list view consumes them. It guarantees at most one fetch
// in flight and discards responses that arrive after a Reset.
type Scroller struct {
	fetch    FetchFunc
	pageSize int
	logger   logging.Logger

	mu      sync.Mutex
	items   []models.Entity
	cursor  string
	hasMore bool
	loading bool
	gen     int
}

func NewScroller(fetch FetchFunc, pageSize int, logger logging.Logger) *Scroller {
	return &Scroller{
		fetch:    fetch,
		pageSize: pageSize,
		logger:   logger,
		hasMore:  true,
	}
}

// Items returns a copy of everything loaded so far.
func (s *Scroller) Items() []models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Entity, len(s.items))
	copy(out, s.items)
	return out
}

// HasMore reports whether another LoadMore could extend the list.
func (s *Scroller) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Loading reports whether a fetch is currently in flight.
func (s *Scroller) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Len returns the number of items loaded so far.
func (s *Scroller) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// LoadMore fetches the next page and appends it. Calls while a fetch is in
// flight, or once the sequence is exhausted, return immediately with no
// effect, so a scroll handler may invoke it as often as it likes.
func (s *Scroller) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	gen := s.gen
	cursor := s.cursor
	s.mu.Unlock()

	page, err := s.fetch(ctx, cursor, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A Reset happened while the fetch was out. The response belongs
		// to a list the caller no longer sees.
		s.logger.Debug(ctx, "discarding stale page", "gen", gen, "current", s.gen)
		return nil
	}
	s.loading = false
	if err != nil {
		return fmt.Errorf("load more: %w", err)
	}

	s.items = append(s.items, page.Items...)
	s.cursor = page.NextCursor
	s.hasMore = page.HasMore
	return nil
}

// Reset clears the accumulated list and invalidates any in-flight fetch.
func (s *Scroller) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.cursor = ""
	s.hasMore = true
	s.loading = false
	s.gen++
}

// Refresh restarts the sequence from the top and loads the first page.
func (s *Scroller) Refresh(ctx context.Context) error {
	s.Reset()
	return s.LoadMore(ctx)
}

// NearEnd reports whether the caller has scrolled within threshold items
// of the loaded tail, the usual trigger for prefetching the next page.
func (s *Scroller) NearEnd(position, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore && position >= len(s.items)-threshold
}
