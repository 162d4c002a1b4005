package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hochfrequenz/agent-orchestrator/internal/registry"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens in the middleware; same-origin policy is not useful for
	// a localhost dashboard.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans registry events out to websocket clients. A slow client is
// dropped rather than allowed to stall the others.
type Hub struct {
	registry *registry.Registry

	mu      sync.Mutex
	clients map[chan registry.Event]bool
}

// NewHub creates a Hub bound to the registry's event feed
func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		registry: reg,
		clients:  make(map[chan registry.Event]bool),
	}
}

// Run consumes registry events and broadcasts them until the subscription
// channel closes.
func (h *Hub) Run() {
	events := h.registry.Subscribe()
	defer h.registry.Unsubscribe(events)

	for ev := range events {
		h.mu.Lock()
		for client := range h.clients {
			select {
			case client <- ev:
			default:
				delete(h.clients, client)
				close(client)
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) register() chan registry.Event {
	client := make(chan registry.Event, 16)
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	return client
}

func (h *Hub) unregister(client chan registry.Event) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client)
	}
	h.mu.Unlock()
}

func (s *Server) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := s.hub.register()
		defer s.hub.unregister(client)

		// Reader goroutine only watches for the client closing
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-client:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
