package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/localstore"
	"github.com/mbelkin/cardsync/internal/netmon"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and authenticates against the backend.
//
// On success the tokens are persisted in the metadata table so the session
// survives restarts, and the monitor is flipped online (we evidently reached
// the server). If the server is unreachable but a stored session exists for
// the same user, the login degrades to offline mode: reads and writes keep
// working against the cache and sync catches up later.
func (a *App) Login(ctx context.Context) error {
	userID, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.api.Login(ctx, userID, string(password))
	if err != nil {
		if errors.Is(err, common.ErrNetwork) && userID == a.userID && a.session.Authenticated() {
			fmt.Println("Server unavailable, continuing offline with the stored session.")
			a.monitor.SetStatus(netmon.StatusOffline)
			return nil
		}
		return err
	}

	if userID != a.userID {
		a.dropCardView()
	}
	a.userID = userID
	a.persistSession(ctx)
	a.monitor.SetStatus(netmon.StatusOnline)
	fmt.Println("Success!")
	return nil
}

// Logout drops the in-memory session and its persisted copy. Cached entities
// stay on disk; they belong to the device, not the session.
func (a *App) Logout(ctx context.Context) error {
	a.session.Clear()
	a.userID = ""
	a.dropCardView()
	if err := a.store.DeleteMeta(ctx, localstore.MetaAccessToken); err != nil {
		return err
	}
	if err := a.store.DeleteMeta(ctx, localstore.MetaRefreshToken); err != nil {
		return err
	}
	return a.store.DeleteMeta(ctx, localstore.MetaUserID)
}

func (a *App) persistSession(ctx context.Context) {
	access, refresh := a.session.Tokens()
	for key, value := range map[string]string{
		localstore.MetaAccessToken:  access,
		localstore.MetaRefreshToken: refresh,
		localstore.MetaUserID:       a.userID,
	} {
		if err := a.store.SetMeta(ctx, key, []byte(value)); err != nil {
			a.logger.Warn(ctx, "persisting session", "key", key, "error", err)
		}
	}
}
