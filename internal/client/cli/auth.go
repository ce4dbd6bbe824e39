package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrack-app/fintrack-go/internal/client/cache"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/client/services"
	"github.com/fintrack-app/fintrack-go/internal/client/session"
	"github.com/fintrack-app/fintrack-go/internal/common"
	"github.com/fintrack-app/fintrack-go/internal/shared"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials, authenticates, and starts the sync
// pipeline for the signed-in user. The password is wiped before returning.
// Failures are reported to the user with the classified message.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	apiSess, err := services.SignIn(ctx, a.api, a.log, email, string(password))
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}

	sess, err := session.FromTokens(apiSess.AccessToken, apiSess.RefreshToken)
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}
	if err := sess.Require(time.Now()); err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}

	a.sess = sess
	a.api.SetToken(sess.AccessToken)
	a.startSync(ctx)

	fmt.Fprintf(a.out, "Signed in as %s\n", email)
	return nil
}

// Logout drops the session and everything built on it, and wipes the
// signed-out user's local snapshots.
func (a *App) Logout(ctx context.Context) error {
	if owner := a.sess.Owner; owner != "" {
		for _, typ := range []models.EntityType{
			models.TypeCategories, models.TypeTransactions,
			models.TypeGoals, models.TypeChatMessages,
		} {
			if err := a.cache.Clear(ctx, cache.Key{Owner: owner, Type: typ}); err != nil {
				a.log.Warn(ctx, "clearing snapshot failed", "type", string(typ), "error", err)
			}
		}
	}
	a.stopSync()
	a.api.SetToken("")
	a.monitor.Set(false)
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
