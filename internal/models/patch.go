package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Patch is a partial update of an entity. Nil fields are left unchanged.
type Patch struct {
	Title      *string
	Amount     *decimal.Decimal
	OccurredOn *time.Time
	Details    json.RawMessage
}

// Apply copies the set fields of p onto e. OccurredOn is normalized to day
// precision.
func (p Patch) Apply(e *Entity) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.OccurredOn != nil {
		e.OccurredOn = Day(*p.OccurredOn)
	}
	if p.Details != nil {
		e.Details = append(json.RawMessage(nil), p.Details...)
	}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Amount == nil && p.OccurredOn == nil && p.Details == nil
}
