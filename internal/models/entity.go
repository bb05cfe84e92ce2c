// Package models defines the domain records held by the local-first cache
// and their wire counterparts.
package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a cached record.
type Kind string

const (
	KindCreditCard     Kind = "credit_card"
	KindTransaction    Kind = "transaction"
	KindBudgetCategory Kind = "budget_category"
)

// SyncState describes a record's reconciliation status with the remote
// backend. Records in a pending state are eligible for push; pending_delete
// records are hidden from effective reads but retained until confirmed.
type SyncState string

const (
	SyncClean         SyncState = "clean"
	SyncPendingCreate SyncState = "pending_create"
	SyncPendingUpdate SyncState = "pending_update"
	SyncPendingDelete SyncState = "pending_delete"
	SyncConflict      SyncState = "conflict"
)

// Pending reports whether the record still awaits remote reconciliation.
func (s SyncState) Pending() bool {
	switch s {
	case SyncPendingCreate, SyncPendingUpdate, SyncPendingDelete:
		return true
	}
	return false
}

// Entity is a generic cached record (credit card, transaction, budget
// category). RemoteID stays empty until the backend has acknowledged the
// record; an entity with an empty RemoteID and SyncState pending_create is
// local-only and awaits its first sync.
type Entity struct {
	ID         string
	OwnerID    string
	Kind       Kind
	Title      string
	Amount     decimal.Decimal
	OccurredOn time.Time // day precision, UTC midnight
	Details    json.RawMessage

	RemoteID        string
	SyncState       SyncState
	UpdatedAtLocal  time.Time
	UpdatedAtRemote time.Time
}

// Clone returns a deep-enough copy for snapshot/rollback use. Details is
// copied because callers may mutate the original buffer in place.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Details != nil {
		c.Details = append(json.RawMessage(nil), e.Details...)
	}
	return &c
}

// Day normalizes t to UTC midnight, the precision used for OccurredOn.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
