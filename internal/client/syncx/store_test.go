package syncx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/fintrack-app/fintrack-go/internal/client/cache"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// fetchStub is a controllable Fetcher. When gate is non-nil every call blocks
// until a value is sent on it.
type fetchStub struct {
	mu    sync.Mutex
	calls int
	items []models.Category
	err   error
	gate  chan struct{}
}

func (f *fetchStub) fetch(ctx context.Context, owner string) ([]models.Category, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, f.err
}

func (f *fetchStub) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fetchStub) set(items []models.Category, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

type stubEvents struct {
	ch chan models.ChangeEvent
}

func (s stubEvents) Subscribe(string, models.EntityType) (<-chan models.ChangeEvent, func()) {
	return s.ch, func() {}
}

func categories(names ...string) []models.Category {
	out := make([]models.Category, 0, len(names))
	for i, n := range names {
		out = append(out, models.Category{ID: fmt.Sprintf("c%d", i), UserID: "owner-1", Name: n})
	}
	return out
}

func waitForState(t *testing.T, s *Store[models.Category], want State) Snapshot[models.Category] {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "store never reached %s", want)
	return s.Snapshot()
}

func TestStoreInitialLoad(t *testing.T) {
	fetcher := &fetchStub{items: categories("Groceries", "Transport")}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, nil, logging.NewDiscard())
	defer s.Close()

	assert.Equal(t, StateIdle, s.Snapshot().State)

	s.SetOwner(context.Background(), "owner-1")
	snap := waitForState(t, s, StateReady)
	assert.Len(t, snap.Items, 2)
	assert.False(t, snap.FromCache)
	assert.NoError(t, snap.Err)
}

func TestStoreHydratesFromCacheBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	db, err := cache.Open(ctx, "file:syncstoretest1?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	c, err := cache.New(db, logging.NewDiscard())
	require.NoError(t, err)

	key := cache.Key{Owner: "owner-1", Type: models.TypeCategories}
	require.NoError(t, cache.Write(ctx, c, key, categories("Groceries")))

	gate := make(chan struct{})
	fetcher := &fetchStub{items: categories("Groceries", "Transport"), gate: gate}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, c, nil, logging.NewDiscard())
	defer s.Close()

	s.SetOwner(ctx, "owner-1")

	// Cached rows paint immediately while the fetch is still blocked.
	snap := s.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.FromCache)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Groceries", snap.Items[0].Name)

	close(gate)
	require.Eventually(t, func() bool {
		got := s.Snapshot()
		return got.State == StateReady && !got.FromCache && len(got.Items) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// The confirmed collection replaces the cached one on disk.
	require.Eventually(t, func() bool {
		stored, ok := cache.Read[models.Category](ctx, c, key)
		return ok && len(stored) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStoreCoalescesRefetches(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fetchStub{items: categories("Groceries"), gate: gate}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, nil, logging.NewDiscard())
	defer s.Close()

	ctx := context.Background()
	s.SetOwner(ctx, "owner-1")
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, 2*time.Second, time.Millisecond)

	// A burst of requests while one call is in flight collapses into a
	// single trailing call.
	for i := 0; i < 5; i++ {
		s.Refetch()
	}

	gate <- struct{}{}
	gate <- struct{}{}
	waitForState(t, s, StateReady)

	require.Eventually(t, func() bool { return fetcher.callCount() == 2 }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestStoreErrorKeepsLastGoodCollection(t *testing.T) {
	fetcher := &fetchStub{items: categories("Groceries", "Transport")}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, nil, logging.NewDiscard())
	defer s.Close()

	ctx := context.Background()
	s.SetOwner(ctx, "owner-1")
	waitForState(t, s, StateReady)

	fetcher.set(nil, errors.New("gateway timeout"))
	s.Refetch()

	snap := waitForState(t, s, StateError)
	assert.Error(t, snap.Err)
	assert.Len(t, snap.Items, 2, "a failed refresh must not drop displayed data")
}

func TestStoreRefreshIsSilentWhenReady(t *testing.T) {
	fetcher := &fetchStub{items: categories("Groceries")}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, nil, logging.NewDiscard())
	defer s.Close()

	ctx := context.Background()
	s.SetOwner(ctx, "owner-1")
	waitForState(t, s, StateReady)

	updates, stop := s.Updates()
	defer stop()
	<-updates // current snapshot

	fetcher.set(categories("Groceries", "Transport"), nil)
	s.Refetch()

	require.Eventually(t, func() bool { return len(s.Snapshot().Items) == 2 }, 2*time.Second, time.Millisecond)
	for {
		select {
		case snap := <-updates:
			assert.NotEqual(t, StateLoading, snap.State, "refresh of visible data must not flash a loading state")
			if len(snap.Items) == 2 {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("refreshed snapshot never arrived")
		}
	}
}

func TestStoreOwnerChangeDiscardsStaleFetch(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fetchStub{items: categories("Groceries"), gate: gate}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, nil, logging.NewDiscard())
	defer s.Close()

	ctx := context.Background()
	s.SetOwner(ctx, "owner-1")
	require.Eventually(t, func() bool { return fetcher.callCount() == 1 }, 2*time.Second, time.Millisecond)

	// Sign-out while the fetch is running.
	s.SetOwner(ctx, "")
	close(gate)

	time.Sleep(20 * time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Items, "a fetch for a previous owner must not land")
}

func TestStoreChangeEventTriggersRefetch(t *testing.T) {
	events := stubEvents{ch: make(chan models.ChangeEvent, 1)}
	fetcher := &fetchStub{items: categories("Groceries")}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, events, logging.NewDiscard())
	defer s.Close()

	s.SetOwner(context.Background(), "owner-1")
	waitForState(t, s, StateReady)

	fetcher.set(categories("Groceries", "Transport"), nil)
	events.ch <- models.ChangeEvent{Owner: "owner-1", Type: models.TypeCategories}

	require.Eventually(t, func() bool { return len(s.Snapshot().Items) == 2 }, 2*time.Second, time.Millisecond)
}

func TestStoreRefetchKeepsProvisionalRows(t *testing.T) {
	pending := models.Transaction{ID: models.NewProvisionalID(), UserID: "owner-1", Description: "coffee"}
	fetch := func(ctx context.Context, owner string) ([]models.Transaction, error) {
		return []models.Transaction{{ID: "t1", UserID: owner, Description: "rent"}}, nil
	}
	s := New[models.Transaction](models.TypeTransactions, fetch, nil, nil, logging.NewDiscard(),
		WithNormalize[models.Transaction](models.DedupeProvisional))
	defer s.Close()

	ctx := context.Background()
	s.SetOwner(ctx, "owner-1")
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.State == StateReady && len(snap.Items) == 1
	}, 2*time.Second, time.Millisecond)

	s.Mutate(func(items []models.Transaction) []models.Transaction {
		return append(items, pending)
	})

	// A refresh landing while the optimistic row is still unconfirmed must
	// not make it vanish.
	s.Refetch()
	time.Sleep(20 * time.Millisecond)
	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.True(t, models.IsProvisional(snap.Items[1].ID))
}

func TestStoreNormalizeDropsConfirmedDuplicate(t *testing.T) {
	pending := models.Transaction{ID: models.NewProvisionalID(), UserID: "owner-1",
		Description: "coffee", Amount: decimal.RequireFromString("4.50")}
	confirmed := models.Transaction{ID: "t2", UserID: "owner-1",
		Description: "coffee", Amount: decimal.RequireFromString("4.50")}

	fetch := func(ctx context.Context, owner string) ([]models.Transaction, error) {
		return []models.Transaction{confirmed}, nil
	}
	s := New[models.Transaction](models.TypeTransactions, fetch, nil, nil, logging.NewDiscard(),
		WithNormalize[models.Transaction](models.DedupeProvisional))
	defer s.Close()

	ctx := context.Background()
	s.SetOwner(ctx, "owner-1")
	waitForTransactions(t, s, 1)

	s.Mutate(func(items []models.Transaction) []models.Transaction {
		return append(items, pending)
	})

	// The server copy carries the same content; the provisional row goes.
	s.Refetch()
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		if len(snap.Items) != 1 {
			return false
		}
		return snap.Items[0].ID == "t2"
	}, 2*time.Second, time.Millisecond)
}

func waitForTransactions(t *testing.T, s *Store[models.Transaction], n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.State == StateReady && len(snap.Items) == n
	}, 2*time.Second, time.Millisecond)
}

func TestStoreMutatePublishesLocally(t *testing.T) {
	fetcher := &fetchStub{items: categories("Groceries")}
	s := New[models.Category](models.TypeCategories, fetcher.fetch, nil, nil, logging.NewDiscard())
	defer s.Close()

	s.SetOwner(context.Background(), "owner-1")
	waitForState(t, s, StateReady)

	updates, stop := s.Updates()
	defer stop()
	<-updates

	s.Mutate(func(items []models.Category) []models.Category {
		return append(items, models.Category{ID: models.NewProvisionalID(), UserID: "owner-1", Name: "Transport"})
	})

	select {
	case snap := <-updates:
		require.Len(t, snap.Items, 2)
		assert.True(t, models.IsProvisional(snap.Items[1].ID))
	case <-time.After(time.Second):
		t.Fatal("mutation snapshot never arrived")
	}

	assert.Equal(t, 1, fetcher.callCount(), "local mutation must not hit the network")
}
