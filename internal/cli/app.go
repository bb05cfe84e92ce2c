// Package cli implements the interactive cardsync client: a REPL over the
// local-first repository, with a connectivity watcher that flips the app
// between online and offline behaviour.
package cli

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mbelkin/cardsync/internal/config"
	"github.com/mbelkin/cardsync/internal/eventbus"
	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/mbelkin/cardsync/internal/models"
	"github.com/mbelkin/cardsync/internal/netmon"
	"github.com/mbelkin/cardsync/internal/optimistic"
	"github.com/mbelkin/cardsync/internal/pagination"
	"github.com/mbelkin/cardsync/internal/remote"
	"github.com/mbelkin/cardsync/internal/repository"
)

type App struct {
	config *config.Config
	logger logging.Logger
	reader *bufio.Reader

	store   *localstore.Store
	session *remote.Session
	api     *remote.HTTPService
	monitor *netmon.Monitor
	bus     *eventbus.Bus
	repo    *repository.Repository

	userID     string
	txScroller *pagination.Scroller
	cardView   *optimistic.Coordinator
}

// cards returns the optimistic card view for the current user, creating it
// on first use.
func (a *App) cards() *optimistic.Coordinator {
	if a.cardView == nil {
		a.cardView = optimistic.New(a.repo, a.bus, a.userID, models.KindCreditCard, a.logger)
	}
	return a.cardView
}

func (a *App) dropCardView() {
	if a.cardView != nil {
		a.cardView.Close()
		a.cardView = nil
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelWarn})))

	store, err := localstore.Open(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, err
	}

	// A session survives restarts through the metadata table; an absent
	// token simply means the user has to log in again.
	access, _ := store.GetMeta(ctx, localstore.MetaAccessToken)
	refresh, _ := store.GetMeta(ctx, localstore.MetaRefreshToken)
	user, _ := store.GetMeta(ctx, localstore.MetaUserID)

	session := remote.NewSession(string(access), string(refresh))
	api := remote.NewHTTPService(c.RemoteBaseURL, session, logger)
	monitor := netmon.New(api, c.OnlineCheckInterval, logger)
	bus := eventbus.New(logger)

	policy := repository.SyncPolicy{
		MaxAttempts: c.SyncMaxAttempts,
		BackoffBase: c.SyncBackoffBase,
		BackoffCap:  c.SyncBackoffCap,
		Retention:   time.Duration(c.RetentionDays) * 24 * time.Hour,
	}
	repo := repository.New(store, api, monitor, bus, policy, logger)

	return &App{
		config:  c,
		logger:  logger,
		reader:  bufio.NewReader(os.Stdin),
		store:   store,
		session: session,
		api:     api,
		monitor: monitor,
		bus:     bus,
		repo:    repo,
		userID:  string(user),
	}, nil
}

// Run drives the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.monitor.Run(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	a.dropCardView()
	a.repo.Close()
	a.repo.Wait()
	if err := a.store.Close(); err != nil {
		a.logger.Warn(ctx, "closing local store", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.userID != "" && a.session.Authenticated()
}

// status renders the prompt suffix: user, connectivity, pending pushes.
func (a *App) status() string {
	s := ""
	if a.userID != "" {
		s = a.userID + " "
	}
	s += string(a.monitor.Status())
	if n, err := a.repo.PendingCount(context.Background()); err == nil && n > 0 {
		s += " " + pendingBadge(n)
	}
	return "(" + s + ")"
}
