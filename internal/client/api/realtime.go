package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/logging"
	"github.com/fintrack-app/fintrack-go/internal/retryx"
)

// subKey scopes a realtime subscription to one owner and entity type.
type subKey struct {
	owner string
	typ   models.EntityType
}

// Realtime consumes the backend's websocket change feed and fans events out
// to per-(owner,type) subscriber channels. The connection state doubles as
// the reachability signal: the monitor flips online on connect and offline
// when the socket drops, so no one polls.
type Realtime struct {
	wsURL   string
	anonKey string
	token   string
	monitor *connectivity.Monitor
	log     logging.Logger
	dialer  *websocket.Dialer

	baseDelay time.Duration
	maxDelay  time.Duration

	mu     sync.Mutex
	subs   map[subKey]map[int]chan models.ChangeEvent
	nextID int
}

// NewRealtime builds the feed for the backend behind c, authenticated with
// the given access token. Run must be started for events to flow.
func NewRealtime(c *Client, token string, monitor *connectivity.Monitor, log logging.Logger) *Realtime {
	return &Realtime{
		wsURL:     wsEndpoint(c.BaseURL()),
		anonKey:   c.anonKey,
		token:     token,
		monitor:   monitor,
		log:       log,
		dialer:    websocket.DefaultDialer,
		baseDelay: time.Second,
		maxDelay:  30 * time.Second,
		subs:      make(map[subKey]map[int]chan models.ChangeEvent),
	}
}

func wsEndpoint(baseURL string) string {
	u := baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/realtime/v1"
}

// Subscribe registers interest in change events for one owner and entity
// type. The channel is buffered; events are dropped rather than blocking the
// read loop, which is safe because consumers refetch rather than replay.
func (r *Realtime) Subscribe(owner string, typ models.EntityType) (<-chan models.ChangeEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := subKey{owner: owner, typ: typ}
	if r.subs[k] == nil {
		r.subs[k] = make(map[int]chan models.ChangeEvent)
	}
	id := r.nextID
	r.nextID++
	ch := make(chan models.ChangeEvent, 8)
	r.subs[k][id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if m, ok := r.subs[k]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(r.subs, k)
			}
		}
	}
	return ch, cancel
}

func (r *Realtime) dispatch(ev models.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs[subKey{owner: ev.Owner, typ: ev.Type}] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Run connects and keeps the feed alive until ctx is cancelled, reconnecting
// with backoff after failures. It blocks; callers run it in a goroutine.
func (r *Realtime) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := r.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		r.monitor.Set(false)

		// A drop after an established connection starts a fresh backoff
		// ladder; only consecutive failed dials escalate the delay.
		if connected {
			attempt = 0
		}

		d := retryx.Delay(attempt, r.baseDelay, r.maxDelay)
		r.log.Warn(ctx, "realtime connection lost, reconnecting",
			"attempt", attempt+1, "delay", d, "error", err)
		attempt++

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return
		}
	}
}

// connectAndRead dials the feed and pumps events until the socket drops.
// The returned bool reports whether the dial itself succeeded.
func (r *Realtime) connectAndRead(ctx context.Context) (bool, error) {
	q := url.Values{}
	q.Set("apikey", r.anonKey)
	q.Set("token", r.token)

	conn, _, err := r.dialer.DialContext(ctx, r.wsURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	r.monitor.Set(true)
	r.log.Info(ctx, "realtime connected")

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var ev models.ChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			r.log.Warn(ctx, "discarding malformed realtime event", "error", err)
			continue
		}
		r.dispatch(ev)
	}
}
