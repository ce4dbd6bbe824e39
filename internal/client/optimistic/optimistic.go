// Package optimistic runs remote mutations with an immediate local echo: the
// collection is patched before the network call, and the patch is inverted if
// the call fails. While the device is offline mutations are refused up front,
// with no patch applied and no call made.
package optimistic

import (
	"context"
	"sync"

	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/common"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// View is the local collection a controller patches. *syncx.Store satisfies
// it.
type View[T models.Entity] interface {
	Mutate(fn func([]T) []T)
}

// Patch is a reversible local edit. Invert must undo exactly what Apply did.
type Patch[T models.Entity] struct {
	Apply  func([]T) []T
	Invert func([]T) []T
}

// Insert returns a patch that appends item and removes it again by id.
func Insert[T models.Entity](item T) Patch[T] {
	id := item.EntityID()
	return Patch[T]{
		Apply: func(items []T) []T {
			return append(append([]T(nil), items...), item)
		},
		Invert: removeByID[T](id),
	}
}

// Replace returns a patch that swaps the row with updated's id for updated,
// and restores previous on inversion.
func Replace[T models.Entity](updated, previous T) Patch[T] {
	return Patch[T]{
		Apply:  swapByID(updated),
		Invert: swapByID(previous),
	}
}

// Delta returns a patch that adjusts the row with the given id in place.
// apply and invert must be exact inverses of each other; numeric
// adjustments such as goal contributions pass +amount and -amount.
// A missing id leaves the collection untouched both ways.
func Delta[T models.Entity](id string, apply, invert func(T) T) Patch[T] {
	adjust := func(fn func(T) T) func([]T) []T {
		return func(items []T) []T {
			out := make([]T, len(items))
			for i, it := range items {
				if it.EntityID() == id {
					out[i] = fn(it)
				} else {
					out[i] = it
				}
			}
			return out
		}
	}
	return Patch[T]{Apply: adjust(apply), Invert: adjust(invert)}
}

// Remove returns a patch that deletes item by id and reinserts it at its
// original position on inversion.
func Remove[T models.Entity](item T) Patch[T] {
	id := item.EntityID()
	pos := -1
	return Patch[T]{
		Apply: func(items []T) []T {
			out := make([]T, 0, len(items))
			for i, it := range items {
				if it.EntityID() == id {
					pos = i
					continue
				}
				out = append(out, it)
			}
			return out
		},
		Invert: func(items []T) []T {
			i := pos
			if i < 0 || i > len(items) {
				i = len(items)
			}
			out := make([]T, 0, len(items)+1)
			out = append(out, items[:i]...)
			out = append(out, item)
			return append(out, items[i:]...)
		},
	}
}

// Confirm returns a mutation that replaces the provisional row with the
// durable copy the server returned. If the durable id is already present
// (a refetch won the race) the provisional row is simply dropped.
func Confirm[T models.Entity](provisionalID string, confirmed T) func([]T) []T {
	return func(items []T) []T {
		durablePresent := false
		for _, it := range items {
			if it.EntityID() == confirmed.EntityID() {
				durablePresent = true
				break
			}
		}

		out := make([]T, 0, len(items))
		for _, it := range items {
			if it.EntityID() != provisionalID {
				out = append(out, it)
				continue
			}
			if !durablePresent {
				out = append(out, confirmed)
			}
		}
		return out
	}
}

// Reconcile returns a mutation that swaps in the server's copy of a durable
// row, typically as the follow-up after a delta mutation succeeds.
func Reconcile[T models.Entity](confirmed T) func([]T) []T {
	return swapByID(confirmed)
}

func removeByID[T models.Entity](id string) func([]T) []T {
	return func(items []T) []T {
		out := make([]T, 0, len(items))
		for _, it := range items {
			if it.EntityID() != id {
				out = append(out, it)
			}
		}
		return out
	}
}

func swapByID[T models.Entity](replacement T) func([]T) []T {
	id := replacement.EntityID()
	return func(items []T) []T {
		out := make([]T, len(items))
		for i, it := range items {
			if it.EntityID() == id {
				out[i] = replacement
			} else {
				out[i] = it
			}
		}
		return out
	}
}

// Controller serializes optimistic mutations against one view: at most one
// is in flight at a time.
type Controller[T models.Entity] struct {
	monitor *connectivity.Monitor
	view    View[T]
	log     logging.Logger

	mu       sync.Mutex
	inflight bool
	lastErr  error
}

func NewController[T models.Entity](monitor *connectivity.Monitor, view View[T], log logging.Logger) *Controller[T] {
	return &Controller[T]{monitor: monitor, view: view, log: log}
}

// InFlight reports whether a mutation is currently running.
func (c *Controller[T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Err returns the error from the most recent mutation, cleared by the next
// successful one.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Invoke applies the patch locally, runs call, and on failure inverts the
// patch and returns the classified error. On success call may hand back a
// follow-up mutation (typically Confirm) which is applied before returning.
//
// While offline, Invoke refuses immediately: no patch, no network call.
// While another mutation is in flight, Invoke returns the in-flight
// mutation's guard error without touching the collection.
func (c *Controller[T]) Invoke(ctx context.Context, op string, p Patch[T], call func(context.Context) (func([]T) []T, error)) error {
	if !c.monitor.Online() {
		err := common.Offline()
		c.setErr(err)
		c.log.Warn(ctx, "mutation refused while offline", "op", op)
		return err
	}

	c.mu.Lock()
	if c.inflight {
		c.mu.Unlock()
		return common.NewAppError(common.KindValidation, "another change is still being saved", nil)
	}
	c.inflight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inflight = false
		c.mu.Unlock()
	}()

	c.view.Mutate(p.Apply)

	followUp, err := call(ctx)
	if err != nil {
		c.view.Mutate(p.Invert)
		classified := common.Classify(err)
		c.setErr(classified)
		c.log.Warn(ctx, "mutation rolled back", "op", op, "error", classified)
		return classified
	}

	if followUp != nil {
		c.view.Mutate(followUp)
	}
	c.setErr(nil)
	return nil
}

func (c *Controller[T]) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}
