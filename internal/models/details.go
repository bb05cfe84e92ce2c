package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// TypedDetails is implemented by every payload that can be carried in
// Entity.Details.
type TypedDetails interface {
	EntityKind() Kind
}

// CreditCard stores card-specific fields. The entity's Amount mirrors
// Balance so that range scans and aggregates work off a single column.
type CreditCard struct {
	Network string          `json:"network"`
	Last4   string          `json:"last4"`
	Limit   decimal.Decimal `json:"limit"`
	Balance decimal.Decimal `json:"balance"`
}

func (CreditCard) EntityKind() Kind { return KindCreditCard }

// Transaction stores purchase-specific fields. The signed amount itself
// lives on the entity.
type Transaction struct {
	Category string `json:"category"`
	Merchant string `json:"merchant"`
	Note     string `json:"note,omitempty"`
}

func (Transaction) EntityKind() Kind { return KindTransaction }

// BudgetCategory stores a monthly budget envelope.
type BudgetCategory struct {
	Name    string          `json:"name"`
	Monthly decimal.Decimal `json:"monthly"`
}

func (BudgetCategory) EntityKind() Kind { return KindBudgetCategory }

// WrapDetails serializes a typed payload for storage in Entity.Details.
func WrapDetails(v TypedDetails) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wrap details: %w", err)
	}
	return b, nil
}

// UnwrapDetails deserializes Entity.Details according to the entity's kind.
// Unknown kinds decode into a generic map.
func (e *Entity) UnwrapDetails() (any, error) {
	switch e.Kind {
	case KindCreditCard:
		var v CreditCard
		return v, json.Unmarshal(e.Details, &v)
	case KindTransaction:
		var v Transaction
		return v, json.Unmarshal(e.Details, &v)
	case KindBudgetCategory:
		var v BudgetCategory
		return v, json.Unmarshal(e.Details, &v)
	default:
		var m map[string]any
		if err := json.Unmarshal(e.Details, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
}
