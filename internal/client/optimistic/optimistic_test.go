package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/common"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// memView is a plain in-memory View.
type memView struct {
	mu    sync.Mutex
	items []models.Category
}

func (v *memView) Mutate(fn func([]models.Category) []models.Category) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = fn(v.items)
}

func (v *memView) snapshot() []models.Category {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Category, len(v.items))
	copy(out, v.items)
	return out
}

func newController(online bool, view *memView) *Controller[models.Category] {
	return NewController[models.Category](connectivity.NewMonitor(online), view, logging.NewDiscard())
}

func TestInvokeRefusedOffline(t *testing.T) {
	view := &memView{items: []models.Category{{ID: "c1", Name: "Groceries"}}}
	ctrl := newController(false, view)

	called := false
	item := models.Category{ID: models.NewProvisionalID(), Name: "Transport"}
	err := ctrl.Invoke(context.Background(), "categories.create", Insert(item),
		func(context.Context) (func([]models.Category) []models.Category, error) {
			called = true
			return nil, nil
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOffline)
	assert.Equal(t, common.KindNetwork, common.KindOf(err))
	assert.False(t, called, "no network call may happen while offline")
	assert.Len(t, view.snapshot(), 1, "no local change may happen while offline")
	assert.Error(t, ctrl.Err())
}

func TestInvokeInsertConfirm(t *testing.T) {
	view := &memView{}
	ctrl := newController(true, view)

	provisional := models.Category{ID: models.NewProvisionalID(), UserID: "owner-1", Name: "Transport"}
	durable := models.Category{ID: "c9", UserID: "owner-1", Name: "Transport"}

	var seenDuringCall []models.Category
	err := ctrl.Invoke(context.Background(), "categories.create", Insert(provisional),
		func(context.Context) (func([]models.Category) []models.Category, error) {
			seenDuringCall = view.snapshot()
			return Confirm(provisional.ID, durable), nil
		})

	require.NoError(t, err)
	require.Len(t, seenDuringCall, 1, "the optimistic row must be visible before the call returns")
	assert.True(t, models.IsProvisional(seenDuringCall[0].ID))

	after := view.snapshot()
	require.Len(t, after, 1)
	assert.Equal(t, "c9", after[0].ID)
	assert.NoError(t, ctrl.Err())
}

func TestInvokeRollsBackOnFailure(t *testing.T) {
	view := &memView{items: []models.Category{{ID: "c1", Name: "Groceries"}}}
	ctrl := newController(true, view)

	item := models.Category{ID: models.NewProvisionalID(), Name: "Groceries"}
	err := ctrl.Invoke(context.Background(), "categories.create", Insert(item),
		func(context.Context) (func([]models.Category) []models.Category, error) {
			return nil, &common.WireError{Status: 409, Code: common.CodeUniqueViolation, Message: "duplicate"}
		})

	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	after := view.snapshot()
	require.Len(t, after, 1, "the optimistic row must be gone after rollback")
	assert.Equal(t, "c1", after[0].ID)
	assert.Error(t, ctrl.Err())
}

func TestInvokeRemoveRollbackRestoresPosition(t *testing.T) {
	view := &memView{items: []models.Category{
		{ID: "c1", Name: "Groceries"},
		{ID: "c2", Name: "Transport"},
		{ID: "c3", Name: "Rent"},
	}}
	ctrl := newController(true, view)

	err := ctrl.Invoke(context.Background(), "categories.delete", Remove(view.snapshot()[1]),
		func(context.Context) (func([]models.Category) []models.Category, error) {
			require.Len(t, view.snapshot(), 2)
			return nil, errors.New("connection reset by peer")
		})

	require.Error(t, err)
	assert.Equal(t, common.KindNetwork, common.KindOf(err))

	after := view.snapshot()
	require.Len(t, after, 3)
	assert.Equal(t, "c2", after[1].ID, "rollback must restore the row where it was")
}

func TestInvokeReplaceRollback(t *testing.T) {
	previous := models.Category{ID: "c1", Name: "Groceries"}
	view := &memView{items: []models.Category{previous}}
	ctrl := newController(true, view)

	updated := previous
	updated.Name = "Food"
	err := ctrl.Invoke(context.Background(), "categories.update", Replace(updated, previous),
		func(context.Context) (func([]models.Category) []models.Category, error) {
			require.Equal(t, "Food", view.snapshot()[0].Name)
			return nil, &common.WireError{Status: 403, Code: common.CodeRLSDenied, Message: "denied"}
		})

	require.Error(t, err)
	assert.Equal(t, common.KindPermission, common.KindOf(err))
	assert.Equal(t, "Groceries", view.snapshot()[0].Name)
}

func TestInvokeSingleFlight(t *testing.T) {
	view := &memView{}
	ctrl := newController(true, view)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = ctrl.Invoke(context.Background(), "categories.create",
			Insert(models.Category{ID: models.NewProvisionalID(), Name: "A"}),
			func(context.Context) (func([]models.Category) []models.Category, error) {
				close(started)
				<-release
				return nil, nil
			})
	}()

	<-started
	assert.True(t, ctrl.InFlight())

	err := ctrl.Invoke(context.Background(), "categories.create",
		Insert(models.Category{ID: models.NewProvisionalID(), Name: "B"}),
		func(context.Context) (func([]models.Category) []models.Category, error) {
			t.Error("second call must not run while the first is in flight")
			return nil, nil
		})
	require.Error(t, err)
	assert.Len(t, view.snapshot(), 1, "the refused mutation must not touch the view")

	close(release)
	require.Eventually(t, func() bool { return !ctrl.InFlight() }, time.Second, time.Millisecond)
}

func TestInvokeDeltaReconcile(t *testing.T) {
	amount := decimal.RequireFromString("45.25")
	view := &memView{items: []models.Category{
		{ID: "c1", Name: "Groceries", Spent: decimal.RequireFromString("200.00")},
	}}
	ctrl := newController(true, view)

	patch := Delta[models.Category]("c1",
		func(c models.Category) models.Category {
			c.Spent = c.Spent.Add(amount)
			return c
		},
		func(c models.Category) models.Category {
			c.Spent = c.Spent.Sub(amount)
			return c
		})

	server := models.Category{ID: "c1", Name: "Groceries", Spent: decimal.RequireFromString("245.25")}
	var seenDuringCall []models.Category
	err := ctrl.Invoke(context.Background(), "categories.total", patch,
		func(context.Context) (func([]models.Category) []models.Category, error) {
			seenDuringCall = view.snapshot()
			return Reconcile(server), nil
		})

	require.NoError(t, err)
	require.Len(t, seenDuringCall, 1)
	assert.True(t, seenDuringCall[0].Spent.Equal(decimal.RequireFromString("245.25")),
		"the adjusted total must be visible before the call returns, got %s", seenDuringCall[0].Spent)

	after := view.snapshot()
	require.Len(t, after, 1)
	assert.True(t, after[0].Spent.Equal(server.Spent), "got %s", after[0].Spent)
}

func TestInvokeDeltaRollback(t *testing.T) {
	amount := decimal.RequireFromString("45.25")
	view := &memView{items: []models.Category{
		{ID: "c1", Name: "Groceries", Spent: decimal.RequireFromString("200.00")},
	}}
	ctrl := newController(true, view)

	patch := Delta[models.Category]("c1",
		func(c models.Category) models.Category {
			c.Spent = c.Spent.Add(amount)
			return c
		},
		func(c models.Category) models.Category {
			c.Spent = c.Spent.Sub(amount)
			return c
		})

	err := ctrl.Invoke(context.Background(), "categories.total", patch,
		func(context.Context) (func([]models.Category) []models.Category, error) {
			require.True(t, view.snapshot()[0].Spent.Equal(decimal.RequireFromString("245.25")))
			return nil, errors.New("connection reset by peer")
		})

	require.Error(t, err)
	assert.Equal(t, common.KindNetwork, common.KindOf(err))
	assert.True(t, view.snapshot()[0].Spent.Equal(decimal.RequireFromString("200.00")),
		"rollback must restore the original total, got %s", view.snapshot()[0].Spent)
}

func TestDeltaMissingIDLeavesCollectionUntouched(t *testing.T) {
	items := []models.Category{{ID: "c1", Spent: decimal.NewFromInt(10)}}
	patch := Delta[models.Category]("missing",
		func(c models.Category) models.Category {
			c.Spent = c.Spent.Add(decimal.NewFromInt(5))
			return c
		},
		func(c models.Category) models.Category {
			c.Spent = c.Spent.Sub(decimal.NewFromInt(5))
			return c
		})

	assert.True(t, patch.Apply(items)[0].Spent.Equal(decimal.NewFromInt(10)))
	assert.True(t, patch.Invert(items)[0].Spent.Equal(decimal.NewFromInt(10)))
}

func TestConfirmDropsProvisionalWhenDurableAlreadyArrived(t *testing.T) {
	provisional := models.Category{ID: models.NewProvisionalID(), Name: "Transport"}
	durable := models.Category{ID: "c9", Name: "Transport"}

	items := []models.Category{durable, provisional}
	out := Confirm(provisional.ID, durable)(items)

	require.Len(t, out, 1)
	assert.Equal(t, "c9", out[0].ID)
}
