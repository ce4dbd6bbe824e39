// Package services exposes one service per synchronized entity family:
// list/create/update/delete against the remote store plus a change-event
// subscription. Every remote call goes through the retry wrapper; no entity
// operation bypasses it. Every mutation consults the connectivity monitor
// first and is refused while offline, before any request leaves the device.
package services

import (
	"context"

	"github.com/fintrack-app/fintrack-go/internal/client/api"
	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/common"
	"github.com/fintrack-app/fintrack-go/internal/logging"
	"github.com/fintrack-app/fintrack-go/internal/retryx"
)

// Subscriber delivers change events for one owner and entity type.
// *api.Realtime satisfies it.
type Subscriber interface {
	Subscribe(owner string, typ models.EntityType) (<-chan models.ChangeEvent, func())
}

// Page controls transaction pagination. A zero Page means everything.
type Page struct {
	Size   int
	Offset int
}

// requireOnline is the synchronous offline gate shared by all mutating
// service methods. Reads are not gated; they may still serve from whatever
// the caller has locally.
func requireOnline(m *connectivity.Monitor) error {
	if !m.Online() {
		return common.Offline()
	}
	return nil
}

// SignIn authenticates with the stricter auth retry policy: network failures
// only, fewer attempts than data calls.
func SignIn(ctx context.Context, c *api.Client, log logging.Logger, email, password string) (api.Session, error) {
	return retryx.Do(ctx, log, retryx.AuthPolicy(), "auth.sign-in",
		func(ctx context.Context) (api.Session, error) {
			return c.SignIn(ctx, email, password)
		})
}
