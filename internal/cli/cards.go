package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/repository"
)

// Cards lists the user's credit cards through the optimistic view: the
// cache is augmented from the backend when reachable, then rendered with
// any in-flight local mutations still applied.
func (a *App) Cards(ctx context.Context) error {
	if _, err := a.repo.FindAll(ctx, a.userID, repository.Filter{Kind: models.KindCreditCard}); err != nil {
		return err
	}
	cv := a.cards()
	if err := cv.Reload(ctx); err != nil {
		return err
	}
	cards := cv.Entities()
	if len(cards) == 0 {
		fmt.Println("No cards yet. Try 'addcard'.")
		return nil
	}
	for _, c := range cards {
		fmt.Println(formatEntity(c))
	}
	return nil
}

// AddCard prompts for card details and stores the card optimistically: it
// shows up in 'cards' immediately, whatever the connectivity.
func (a *App) AddCard(ctx context.Context) error {
	title, err := getSimpleText(a.reader, "Card name", os.Stdout)
	if err != nil {
		return err
	}
	network, err := getSimpleText(a.reader, "Network (visa/mastercard/...)", os.Stdout)
	if err != nil {
		return err
	}
	last4, err := getSimpleText(a.reader, "Last 4 digits", os.Stdout)
	if err != nil {
		return err
	}
	limit, err := GetAmount(a.reader, "Credit limit", os.Stdout)
	if err != nil {
		return err
	}
	balance, err := GetAmount(a.reader, "Current balance", os.Stdout)
	if err != nil {
		return err
	}

	details, err := models.WrapDetails(models.CreditCard{
		Network: network,
		Last4:   last4,
		Limit:   limit,
		Balance: balance,
	})
	if err != nil {
		return err
	}

	e, err := a.cards().Create(ctx, models.Entity{
		Title:   title,
		Amount:  balance,
		Details: details,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (%s)\n", e.Title, e.ID)
	return nil
}

// Remove deletes any record by id. The row disappears from listings at
// once; if the backend later rejects the delete it comes back. Card ids go
// through the optimistic view so the visible list tracks the revert.
func (a *App) Remove(ctx context.Context, id string) error {
	if err := a.cards().Delete(ctx, id); err != nil {
		return err
	}
	fmt.Println("Deleted", id)
	return nil
}

func formatEntity(e models.Entity) string {
	marker := ""
	switch {
	case e.SyncState == models.SyncConflict:
		marker = " [conflict]"
	case e.SyncState.Pending():
		marker = " [pending]"
	}
	return fmt.Sprintf("%s  %-24s %12s  %s%s",
		e.ID, e.Title, e.Amount.StringFixed(2), e.OccurredOn.Format("2006-01-02"), marker)
}
