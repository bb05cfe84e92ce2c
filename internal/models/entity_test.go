package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncState_Pending(t *testing.T) {
	assert.True(t, SyncPendingCreate.Pending())
	assert.True(t, SyncPendingUpdate.Pending())
	assert.True(t, SyncPendingDelete.Pending())
	assert.False(t, SyncClean.Pending())
	assert.False(t, SyncConflict.Pending())
}

func TestClone_IsIndependent(t *testing.T) {
	e := &Entity{ID: "a", Details: []byte(`{"x":1}`)}
	c := e.Clone()
	c.Details[2] = 'y'
	c.ID = "b"

	assert.Equal(t, "a", e.ID)
	assert.Equal(t, []byte(`{"x":1}`), []byte(e.Details))
}

func TestDay_NormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("plus5", 5*3600)
	d := Day(time.Date(2026, 7, 1, 2, 30, 0, 0, loc))
	// 02:30 at +05:00 is still June 30 in UTC.
	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), d)
}

func TestPatch_Apply(t *testing.T) {
	title := "renamed"
	amount := decimal.NewFromInt(7)
	when := time.Date(2026, 2, 3, 13, 45, 0, 0, time.UTC)

	e := &Entity{Title: "old", Amount: decimal.NewFromInt(1)}
	p := Patch{Title: &title, Amount: &amount, OccurredOn: &when, Details: []byte(`{"a":1}`)}
	require.False(t, p.Empty())
	p.Apply(e)

	assert.Equal(t, "renamed", e.Title)
	assert.True(t, amount.Equal(e.Amount))
	assert.Equal(t, Day(when), e.OccurredOn)
	assert.JSONEq(t, `{"a":1}`, string(e.Details))

	// An empty patch leaves the record alone.
	before := *e
	require.True(t, Patch{}.Empty())
	Patch{}.Apply(e)
	assert.Equal(t, before.Title, e.Title)
}

func TestUnwrapDetails_ByKind(t *testing.T) {
	details, err := WrapDetails(Transaction{Category: "food", Merchant: "diner"})
	require.NoError(t, err)

	e := &Entity{Kind: KindTransaction, Details: details}
	v, err := e.UnwrapDetails()
	require.NoError(t, err)

	tx, ok := v.(Transaction)
	require.True(t, ok)
	assert.Equal(t, "food", tx.Category)
}

func TestSummary_Utilization(t *testing.T) {
	s := Summary{Total: decimal.NewFromInt(200), Limit: decimal.NewFromInt(1000)}
	assert.True(t, decimal.NewFromInt(20).Equal(s.Utilization()))

	assert.True(t, Summary{}.Utilization().IsZero(), "zero limit must not divide")
}

func TestFoldCardTotals(t *testing.T) {
	details, err := WrapDetails(CreditCard{Limit: decimal.NewFromInt(1000), Balance: decimal.NewFromInt(200)})
	require.NoError(t, err)

	var s Summary
	s = FoldCardTotals(s, Entity{Amount: decimal.NewFromInt(200), Details: details})
	s = FoldCardTotals(s, Entity{Amount: decimal.NewFromInt(300), Details: []byte(`broken`)})

	assert.Equal(t, 2, s.Count)
	assert.True(t, decimal.NewFromInt(500).Equal(s.Total))
	assert.True(t, decimal.NewFromInt(1000).Equal(s.Limit), "undecodable details must not abort the fold")
}
