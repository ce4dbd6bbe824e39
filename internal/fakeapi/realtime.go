package fakeapi

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/fintrack-app/fintrack-go/internal/client/models"
)

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[conn] = &sync.Mutex{}
	s.mu.Unlock()

	// Drain control frames until the peer goes away.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes a change event to every connected realtime client.
func (s *Server) Broadcast(owner string, typ models.EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(owner, string(typ))
}

// broadcastLocked requires s.mu to be held.
func (s *Server) broadcastLocked(owner, table string) {
	ev := models.ChangeEvent{Owner: owner, Type: models.EntityType(table)}
	for conn, wmu := range s.conns {
		go func(c *websocket.Conn, wmu *sync.Mutex) {
			wmu.Lock()
			defer wmu.Unlock()
			_ = c.WriteJSON(ev)
		}(conn, wmu)
	}
}

// CloseRealtime drops all websocket connections, simulating a network cut.
func (s *Server) CloseRealtime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = make(map[*websocket.Conn]*sync.Mutex)
}
