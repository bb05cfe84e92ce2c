package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/pagination"
	"github.com/mbelkin/cardsync/internal/repository"
)

// Transactions starts a fresh scroll through the user's transactions,
// newest first, and prints the first page. 'more' continues it.
func (a *App) Transactions(ctx context.Context) error {
	a.txScroller = pagination.NewScroller(a.transactionFetch(), a.config.PageSize, a.logger)
	return a.More(ctx)
}

// More loads the next page of the current transaction scroll.
func (a *App) More(ctx context.Context) error {
	if a.txScroller == nil {
		return a.Transactions(ctx)
	}
	if !a.txScroller.HasMore() {
		fmt.Println("No more transactions.")
		return nil
	}

	before := a.txScroller.Len()
	if err := a.txScroller.LoadMore(ctx); err != nil {
		return err
	}
	items := a.txScroller.Items()
	for _, e := range items[before:] {
		fmt.Println(formatEntity(e))
	}
	if a.txScroller.HasMore() {
		fmt.Println("-- type 'more' for the next page --")
	}
	return nil
}

// AddTransaction prompts for a transaction and stores it optimistically.
func (a *App) AddTransaction(ctx context.Context) error {
	merchant, err := getSimpleText(a.reader, "Merchant", os.Stdout)
	if err != nil {
		return err
	}
	category, err := getSimpleText(a.reader, "Category", os.Stdout)
	if err != nil {
		return err
	}
	amount, err := GetAmount(a.reader, "Amount", os.Stdout)
	if err != nil {
		return err
	}
	occurredOn, err := GetDate(a.reader, "Date (YYYY-MM-DD, empty for today)", os.Stdout)
	if err != nil {
		return err
	}

	details, err := models.WrapDetails(models.Transaction{
		Merchant: merchant,
		Category: category,
	})
	if err != nil {
		return err
	}

	e, err := a.repo.Create(ctx, a.userID, models.Entity{
		Kind:       models.KindTransaction,
		Title:      merchant,
		Amount:     amount,
		OccurredOn: occurredOn,
		Details:    details,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", e.Title, e.ID)

	// The open scroll predates this write; restart it on next 'tx'.
	a.txScroller = nil
	return nil
}

func (a *App) transactionFetch() pagination.FetchFunc {
	return func(ctx context.Context, cursor string, limit int) (localstore.Page, error) {
		return a.repo.FindByRangePaginated(ctx, a.userID,
			repository.Filter{Kind: models.KindTransaction}, cursor, limit)
	}
}
