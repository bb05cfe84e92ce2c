package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemoteEntity is the wire shape used by the backend API. Field names follow
// the remote contract, not the local schema: the backend keys records by its
// own id and carries the client-assigned id as client_ref so a push can be
// matched back to the originating local record.
type RemoteEntity struct {
	RemoteID   string          `json:"id,omitempty"`
	ClientRef  string          `json:"client_ref"`
	OwnerID    string          `json:"owner_id"`
	EntityType string          `json:"entity_type"`
	Label      string          `json:"label"`
	Amount     string          `json:"amount"`
	PostedDate string          `json:"posted_date"` // YYYY-MM-DD
	Details    json.RawMessage `json:"details,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Deleted    bool            `json:"deleted,omitempty"`
}

const postedDateLayout = "2006-01-02"

// ToRemote converts a local entity to its wire shape. It is total: every
// entity maps to a valid RemoteEntity.
func ToRemote(e *Entity) RemoteEntity {
	return RemoteEntity{
		RemoteID:   e.RemoteID,
		ClientRef:  e.ID,
		OwnerID:    e.OwnerID,
		EntityType: string(e.Kind),
		Label:      e.Title,
		Amount:     e.Amount.String(),
		PostedDate: e.OccurredOn.UTC().Format(postedDateLayout),
		Details:    e.Details,
		UpdatedAt:  e.UpdatedAtRemote,
		Deleted:    e.SyncState == SyncPendingDelete,
	}
}

// FromRemote converts a wire record to a local entity in the clean state.
// When the backend record carries no client_ref (it was created on another
// device), a fresh local id is assigned. FromRemote(ToRemote(e)) recovers
// e's domain fields exactly.
func FromRemote(r RemoteEntity) (*Entity, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("remote amount %q: %w", r.Amount, err)
	}
	day, err := time.ParseInLocation(postedDateLayout, r.PostedDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("remote posted_date %q: %w", r.PostedDate, err)
	}

	id := r.ClientRef
	if id == "" {
		id = uuid.NewString()
	}

	e := &Entity{
		ID:              id,
		OwnerID:         r.OwnerID,
		Kind:            Kind(r.EntityType),
		Title:           r.Label,
		Amount:          amount,
		OccurredOn:      day,
		RemoteID:        r.RemoteID,
		SyncState:       SyncClean,
		UpdatedAtRemote: r.UpdatedAt,
	}
	if r.Details != nil {
		e.Details = append(json.RawMessage(nil), r.Details...)
	}
	return e, nil
}
