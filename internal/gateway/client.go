package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed instrument codes. Empty set means all instruments.
	codeMu sync.RWMutex
	codes  map[string]bool
}

// subscribeMsg is the only client-to-server message.
type subscribeMsg struct {
	Type  string   `json:"type"` // "SUBSCRIBE"
	Codes []string `json:"codes"`
}

func (c *Client) wants(code string) bool {
	c.codeMu.RLock()
	defer c.codeMu.RUnlock()
	return len(c.codes) == 0 || c.codes[code]
}

func (c *Client) setCodes(codes []string) {
	c.codeMu.Lock()
	defer c.codeMu.Unlock()
	c.codes = make(map[string]bool, len(codes))
	for _, code := range codes {
		c.codes[code] = true
	}
}

func (c *Client) sendInitialState() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for code, envelope := range c.hub.latest {
		if !c.wants(code) {
			continue
		}
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var sub subscribeMsg
		if json.Unmarshal(msg, &sub) != nil || sub.Type != "SUBSCRIBE" {
			continue
		}
		c.setCodes(sub.Codes)
	}
}
