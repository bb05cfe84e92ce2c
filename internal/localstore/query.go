package localstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mbelkin/cardsync/internal/models"
)

// Query describes a range scan over the effective (non pending-delete) set.
// An empty Cursor starts a keyset scan; a cursor built by OffsetCursor
// selects offset paging. Limit <= 0 means no limit.
type Query struct {
	OwnerID string
	Kind    models.Kind
	From    time.Time // inclusive day bound, optional
	To      time.Time // exclusive day bound, optional
	Limit   int
	Cursor  string
}

// Page is one slice of a range scan. Total counts the whole effective set
// for the query's filter at scan time; HasMore is authoritative when the two
// disagree.
type Page struct {
	Items      []models.Entity
	NextCursor string
	HasMore    bool
	Total      int
}

// Query performs a stable, repeatable range scan ordered by
// (occurred_on DESC, id DESC). The id tie-break guarantees cursor paging
// never skips or duplicates a record between pages as long as no write
// reorders the scanned range.
func (s *Store) Query(ctx context.Context, q Query) (Page, error) {
	cur, err := decodeCursor(q.Cursor)
	if err != nil {
		return Page{}, err
	}

	where := []string{"owner_id = ?", "kind = ?", "sync_state <> ?"}
	args := []any{q.OwnerID, string(q.Kind), string(models.SyncPendingDelete)}

	if !q.From.IsZero() {
		where = append(where, "occurred_on >= ?")
		args = append(args, models.Day(q.From).UnixMilli())
	}
	if !q.To.IsZero() {
		where = append(where, "occurred_on < ?")
		args = append(args, models.Day(q.To).UnixMilli())
	}

	total, err := s.count(ctx, where, args)
	if err != nil {
		return Page{}, err
	}

	scanWhere := where
	scanArgs := args
	if cur.keyset && cur.id != "" {
		scanWhere = append(scanWhere, "(occurred_on < ? OR (occurred_on = ? AND id < ?))")
		scanArgs = append(scanArgs, cur.ms, cur.ms, cur.id)
	}

	query := `SELECT ` + entityColumns + ` FROM entities WHERE ` +
		strings.Join(scanWhere, " AND ") +
		` ORDER BY occurred_on DESC, id DESC`

	// Fetch one extra row to learn whether more remain.
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit+1)
		if !cur.keyset {
			query += fmt.Sprintf(" OFFSET %d", cur.offset)
		}
	} else if !cur.keyset && cur.offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", cur.offset)
	}

	rows, err := s.db.QueryContext(ctx, query, scanArgs...)
	if err != nil {
		return Page{}, storageErr("query entities", err)
	}
	defer rows.Close()

	var items []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return Page{}, storageErr("scan entity", err)
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, storageErr("iterate entities", err)
	}

	page := Page{Items: items, Total: total}
	if q.Limit > 0 && len(items) > q.Limit {
		page.Items = items[:q.Limit]
		page.HasMore = true
	}

	if page.HasMore {
		if cur.keyset {
			last := page.Items[len(page.Items)-1]
			page.NextCursor = encodeKeysetCursor(last.OccurredOn.UnixMilli(), last.ID)
		} else {
			page.NextCursor = OffsetCursor(cur.offset + q.Limit)
		}
	}
	return page, nil
}

func (s *Store) count(ctx context.Context, where []string, args []any) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM entities WHERE ` + strings.Join(where, " AND ")
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr("count entities", err)
	}
	return n, nil
}
