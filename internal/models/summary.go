package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Summary is a derived aggregate over the effective (non pending-delete)
// entity set. It is never persisted; it is recomputed from store state.
type Summary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Limit decimal.Decimal `json:"limit"`
}

// Utilization returns Total/Limit as a percentage, or zero when no limit
// is known.
func (s Summary) Utilization() decimal.Decimal {
	if s.Limit.IsZero() {
		return decimal.Zero
	}
	return s.Total.Div(s.Limit).Mul(decimal.NewFromInt(100))
}

// FoldAmounts accumulates count and signed amount totals. Suitable for
// transactions and budget categories.
func FoldAmounts(acc Summary, e Entity) Summary {
	acc.Count++
	acc.Total = acc.Total.Add(e.Amount)
	return acc
}

// FoldCardTotals accumulates balances and credit limits for credit cards.
// Rows whose details fail to decode still count toward the balance total.
func FoldCardTotals(acc Summary, e Entity) Summary {
	acc.Count++
	acc.Total = acc.Total.Add(e.Amount)

	var card CreditCard
	if err := json.Unmarshal(e.Details, &card); err == nil {
		acc.Limit = acc.Limit.Add(card.Limit)
	}
	return acc
}

// FoldFor picks the canonical fold for a kind.
func FoldFor(kind Kind) func(Summary, Entity) Summary {
	if kind == KindCreditCard {
		return FoldCardTotals
	}
	return FoldAmounts
}
