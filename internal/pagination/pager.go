package pagination

import (
	"context"
	"fmt"

	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/models"
)

// PageResult is one numbered page plus enough bookkeeping to render
// "page N of M" controls.
type PageResult struct {
	Items      []models.Entity
	Page       int
	TotalPages int
	Total      int
	HasMore    bool
}

// Pager walks a result set by page number using offset cursors. Unlike
// Scroller it can jump backward, at the cost of the usual offset caveats
// when rows are inserted between loads.
type Pager struct {
	fetch    FetchFunc
	pageSize int
	page     int
}

func NewPager(fetch FetchFunc, pageSize int) *Pager {
	return &Pager{fetch: fetch, pageSize: pageSize, page: 1}
}

// Page returns the current page number, 1-based.
func (p *Pager) Page() int {
	return p.page
}

// Load fetches the given page. Page numbers below 1 are clamped to 1.
func (p *Pager) Load(ctx context.Context, page int) (PageResult, error) {
	if page < 1 {
		page = 1
	}
	cursor := localstore.OffsetCursor((page - 1) * p.pageSize)
	res, err := p.fetch(ctx, cursor, p.pageSize)
	if err != nil {
		return PageResult{}, fmt.Errorf("load page %d: %w", page, err)
	}
	p.page = page

	totalPages := (res.Total + p.pageSize - 1) / p.pageSize
	return PageResult{
		Items:      res.Items,
		Page:       page,
		TotalPages: totalPages,
		Total:      res.Total,
		// HasMore comes from the fetch itself, not from the count: the
		// set may have changed since Total was computed.
		HasMore: res.HasMore,
	}, nil
}

// Next advances one page.
func (p *Pager) Next(ctx context.Context) (PageResult, error) {
	return p.Load(ctx, p.page+1)
}

// Prev steps back one page, stopping at the first.
func (p *Pager) Prev(ctx context.Context) (PageResult, error) {
	return p.Load(ctx, p.page-1)
}
