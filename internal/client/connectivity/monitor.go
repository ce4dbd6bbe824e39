// Package connectivity tracks network reachability as an explicit, observable
// state object. The realtime connection feeds it (connected means online);
// mutating entry points consult it synchronously before starting work.
package connectivity

import "sync"

// Monitor is a process-wide online/offline flag with change subscriptions.
// There is no polling: whoever owns the reachability signal calls Set.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int
}

// NewMonitor returns a monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, subs: make(map[int]chan bool)}
}

// Online reports the current reachability flag.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the flag and notifies subscribers on an actual change.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default: // subscriber is behind; it will read the flag on its next turn
		}
	}
}

// Subscribe registers for change notifications. The returned cancel func
// releases the subscription; the channel is buffered so Set never blocks.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
	return ch, cancel
}
