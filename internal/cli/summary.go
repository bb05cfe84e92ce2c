package cli

import (
	"context"
	"fmt"

	"github.com/mbelkin/cardsync/internal/models"
)

// Summary prints card totals: balance, limit and utilization. Online the
// numbers come from the backend; offline they are computed from the cache.
func (a *App) Summary(ctx context.Context) error {
	s, err := a.repo.Summary(ctx, a.userID, models.KindCreditCard)
	if err != nil {
		return err
	}
	fmt.Printf("Cards: %d\n", s.Count)
	fmt.Printf("Balance: %s\n", s.Total.StringFixed(2))
	fmt.Printf("Limit:   %s\n", s.Limit.StringFixed(2))
	if !s.Limit.IsZero() {
		fmt.Printf("Utilization: %s%%\n", s.Utilization().StringFixed(1))
	}
	return nil
}

// Sync pushes all pending local changes now instead of waiting for the
// background drain, then reports what is left.
func (a *App) Sync(ctx context.Context) error {
	a.repo.DrainPending(ctx)
	a.repo.Wait()

	n, err := a.repo.PendingCount(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("All changes synced.")
	} else {
		fmt.Printf("%d change(s) still pending.\n", n)
	}
	return a.repo.Maintain(ctx, a.userID)
}
