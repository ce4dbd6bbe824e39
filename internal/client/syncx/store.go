// Package syncx keeps one in-memory collection per entity type in step with
// the remote store. A Store hydrates from the local cache for instant paint,
// refetches over the network, folds in change events, and publishes snapshots
// to subscribers. Remote reads are serialized: at most one list call is in
// flight per store, and requests arriving while one runs coalesce into a
// single trailing refetch.
package syncx

import (
	"context"
	"sync"

	"github.com/fintrack-app/fintrack-go/internal/client/cache"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// State is the lifecycle phase of a store's collection.
type State int

const (
	// StateIdle means no owner is bound yet.
	StateIdle State = iota
	// StateLoading means the first fetch for the bound owner is running and
	// nothing usable has arrived.
	StateLoading
	// StateReady means the collection holds data. A refresh may still be
	// running behind it.
	StateReady
	// StateError means the last fetch failed. Items retains the last good
	// collection, which may be stale or empty.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of a store at one instant.
type Snapshot[T any] struct {
	State State
	Items []T
	Err   error
	// FromCache is true while Items came from local storage and no network
	// confirmation has arrived yet.
	FromCache bool
}

// Fetcher lists the owner's collection from the remote store.
type Fetcher[T any] func(ctx context.Context, owner string) ([]T, error)

// Subscriber delivers change events for one owner and entity type.
type Subscriber interface {
	Subscribe(owner string, typ models.EntityType) (<-chan models.ChangeEvent, func())
}

// Option configures a Store.
type Option[T models.Entity] func(*Store[T])

// WithNormalize installs a pass that runs over the collection after every
// fetch merge. Transactions use it to drop a provisional row once its
// durable copy arrives carrying the same content.
func WithNormalize[T models.Entity](fn func([]T) []T) Option[T] {
	return func(s *Store[T]) { s.normalize = fn }
}

// Store synchronizes one entity collection for one owner at a time.
type Store[T models.Entity] struct {
	typ       models.EntityType
	fetch     Fetcher[T]
	cache     *cache.Cache // nil disables persistence
	events    Subscriber   // nil disables the change-event loop
	normalize func([]T) []T
	log       logging.Logger

	mu        sync.Mutex
	owner     string
	state     State
	items     []T
	err       error
	fromCache bool

	// gen invalidates in-flight fetches when the owner changes or the store
	// closes.
	gen      int
	inflight bool
	pending  bool

	subs   map[int]chan Snapshot[T]
	nextID int

	ctx         context.Context
	cancel      context.CancelFunc
	stopEvents  func()
	eventerDone chan struct{}
}

// New returns an idle store. Bind an owner with SetOwner before reading.
func New[T models.Entity](typ models.EntityType, fetch Fetcher[T], c *cache.Cache, events Subscriber, log logging.Logger, opts ...Option[T]) *Store[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store[T]{
		typ:    typ,
		fetch:  fetch,
		cache:  c,
		events: events,
		log:    log.With("store", string(typ)),
		subs:   make(map[int]chan Snapshot[T]),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOwner binds the store to an owner: it drops the previous collection,
// hydrates from the cache, subscribes to change events, and starts a refetch.
// Binding the empty owner resets the store to idle.
func (s *Store[T]) SetOwner(ctx context.Context, owner string) {
	s.mu.Lock()
	if owner == s.owner {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.owner = owner
	s.items = nil
	s.err = nil
	s.fromCache = false
	s.inflight = false
	s.pending = false
	stop := s.stopEvents
	s.stopEvents = nil

	if owner == "" {
		s.state = StateIdle
		s.broadcastLocked()
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}

	s.state = StateLoading
	if s.cache != nil {
		if cached, ok := cache.Read[T](ctx, s.cache, cache.Key{Owner: owner, Type: s.typ}); ok {
			s.items = cached
			s.state = StateReady
			s.fromCache = true
		}
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.watchEvents(owner)
	s.Refetch()
}

// watchEvents subscribes to remote change notifications and turns each one
// into a refetch. Events carry no payload, so a refetch is the only way to
// learn what changed.
func (s *Store[T]) watchEvents(owner string) {
	if s.events == nil {
		return
	}
	ch, stop := s.events.Subscribe(owner, s.typ)
	done := make(chan struct{})

	s.mu.Lock()
	s.stopEvents = stop
	s.eventerDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-s.ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.Refetch()
			}
		}
	}()
}

// Refetch asks for a fresh remote list. If a fetch is already running the
// call coalesces: one trailing fetch runs after the current one completes,
// no matter how many requests piled up.
func (s *Store[T]) Refetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == "" {
		return
	}
	if s.inflight {
		s.pending = true
		return
	}
	s.startFetchLocked()
}

func (s *Store[T]) startFetchLocked() {
	s.inflight = true
	gen := s.gen
	owner := s.owner

	// Already-visible data keeps showing while the refresh runs; only an
	// empty store surfaces a loading phase.
	if s.state != StateReady {
		s.state = StateLoading
		s.broadcastLocked()
	}

	go func() {
		items, err := s.fetch(s.ctx, owner)
		s.finishFetch(gen, items, err)
	}()
}

func (s *Store[T]) finishFetch(gen int, items []T, err error) {
	s.mu.Lock()
	if gen != s.gen {
		// Owner changed or store closed while this fetch ran.
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.err = err
		s.state = StateError
		s.log.Warn(s.ctx, "refresh failed", "error", err)
	} else {
		s.items = s.mergeLocked(items)
		s.err = nil
		s.state = StateReady
		s.fromCache = false
	}
	s.broadcastLocked()

	owner := s.owner
	rerun := s.pending
	s.pending = false
	if rerun {
		s.startFetchLocked()
	} else {
		s.inflight = false
	}
	s.mu.Unlock()

	if err == nil && s.cache != nil {
		if werr := cache.Write(s.ctx, s.cache, cache.Key{Owner: owner, Type: s.typ}, items); werr != nil {
			s.log.Warn(s.ctx, "cache write failed", "error", werr)
		}
	}
}

// mergeLocked folds a fetched collection into the store: optimistic
// provisional rows that the server cannot know about yet are carried over,
// then the normalize pass reconciles any overlap.
func (s *Store[T]) mergeLocked(fetched []T) []T {
	merged := fetched
	for _, it := range s.items {
		if models.IsProvisional(it.EntityID()) {
			merged = append(merged, it)
		}
	}
	if s.normalize != nil {
		merged = s.normalize(merged)
	}
	return merged
}

// Snapshot returns the current view. The items slice is shared; callers must
// not mutate it.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{State: s.state, Items: s.items, Err: s.err, FromCache: s.fromCache}
}

// Mutate applies fn to the collection locally and publishes the result
// without touching the network. Optimistic appliers and their rollbacks go
// through here.
func (s *Store[T]) Mutate(fn func([]T) []T) {
	s.mu.Lock()
	s.items = fn(s.items)
	if s.state == StateIdle || s.state == StateLoading {
		s.state = StateReady
	}
	s.broadcastLocked()
	s.mu.Unlock()
}

// Updates returns a channel of snapshots and a cancel function. The current
// snapshot is delivered immediately; later ones on every change. Slow
// consumers miss intermediate snapshots, never the latest.
func (s *Store[T]) Updates() (<-chan Snapshot[T], func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot[T], 1)
	ch <- s.snapshotLocked()
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Store[T]) broadcastLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale queued snapshot and replace it.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Close stops the event loop and invalidates in-flight fetches. The store is
// unusable afterwards.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.gen++
	s.owner = ""
	s.state = StateIdle
	stop := s.stopEvents
	s.stopEvents = nil
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.cancel()
	if stop != nil {
		stop()
	}
}
