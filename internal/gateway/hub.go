// Package gateway fans live quotes out to WebSocket clients. Each client can
// narrow its stream to a set of instrument codes; new clients get the latest
// known quote for every instrument on connect.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/XavierD3728/stockquant/internal/metrics"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub manages WebSocket clients and quote fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // code -> last envelope

	metrics *metrics.Metrics
}

// NewHub creates a hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
		metrics: m,
	}
}

// Run consumes quotes from quoteCh and broadcasts them until ctx is
// cancelled or the channel is closed.
func (h *Hub) Run(ctx context.Context, quoteCh <-chan pricefeed.Quote) {
	for {
		select {
		case <-ctx.Done():
			return
		case q, ok := <-quoteCh:
			if !ok {
				return
			}
			h.broadcast(q)
		}
	}
}

func (h *Hub) broadcast(q pricefeed.Quote) {
	envelope, err := json.Marshal(map[string]any{
		"type":  "quote",
		"quote": q,
		"ts":    q.At.Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("[gateway] marshal quote %s: %v", q.Code, err)
		return
	}

	h.mu.Lock()
	h.latest[q.Code] = envelope
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wants(q.Code) {
			continue
		}
		select {
		case client.send <- envelope:
		default:
			// Slow client: drop the update rather than stall the feed.
		}
	}
}

// HandleWS upgrades the HTTP connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade: %v", err)
		return
	}

	client := &Client{
		conn:  conn,
		send:  make(chan []byte, 256),
		hub:   h,
		codes: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
