package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/XavierD3728/stockquant/internal/pricefeed"
)

func testQuote(code, price string) pricefeed.Quote {
	return pricefeed.Quote{
		Code:  code,
		Price: decimal.RequireFromString(price),
		At:    time.Now(),
	}
}

// addClient registers a channel-only client, no real socket needed for
// fan-out tests.
func addClient(h *Hub, codes ...string) *Client {
	c := &Client{send: make(chan []byte, 16), hub: h, codes: make(map[string]bool)}
	for _, code := range codes {
		c.codes[code] = true
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func receive(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case msg := <-c.send:
		var env map[string]any
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	default:
		t.Fatal("expected a message")
		return nil
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := NewHub(nil)
	c1 := addClient(h)
	c2 := addClient(h)

	h.broadcast(testQuote("600519.SH", "50.00"))

	for _, c := range []*Client{c1, c2} {
		env := receive(t, c)
		require.Equal(t, "quote", env["type"])
		quote := env["quote"].(map[string]any)
		require.Equal(t, "600519.SH", quote["code"])
	}
}

func TestBroadcastHonorsSubscriptions(t *testing.T) {
	h := NewHub(nil)
	moutaiOnly := addClient(h, "600519.SH")
	everything := addClient(h)

	h.broadcast(testQuote("000001.SZ", "12.00"))

	require.Empty(t, moutaiOnly.send)
	env := receive(t, everything)
	require.Equal(t, "000001.SZ", env["quote"].(map[string]any)["code"])
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	slow := &Client{send: make(chan []byte), hub: h, codes: make(map[string]bool)} // unbuffered, never read
	h.mu.Lock()
	h.clients[slow] = true
	h.mu.Unlock()
	ok := addClient(h)

	done := make(chan struct{})
	go func() {
		h.broadcast(testQuote("600519.SH", "50.00"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow client")
	}
	require.NotEmpty(t, ok.send)
}

func TestInitialStateSentOnSubscribe(t *testing.T) {
	h := NewHub(nil)
	h.broadcast(testQuote("600519.SH", "50.00"))
	h.broadcast(testQuote("000001.SZ", "12.00"))

	c := addClient(h, "600519.SH")
	c.sendInitialState()

	env := receive(t, c)
	require.Equal(t, "600519.SH", env["quote"].(map[string]any)["code"])
	require.Empty(t, c.send)
}

func TestRemoveClientIdempotent(t *testing.T) {
	h := NewHub(nil)
	c := addClient(h)
	require.Equal(t, 1, h.ClientCount())

	h.RemoveClient(c)
	h.RemoveClient(c) // second remove must not panic on the closed channel
	require.Equal(t, 0, h.ClientCount())
}

func TestSetCodesReplacesFilter(t *testing.T) {
	h := NewHub(nil)
	c := addClient(h, "600519.SH")

	require.True(t, c.wants("600519.SH"))
	require.False(t, c.wants("000001.SZ"))

	c.setCodes([]string{"000001.SZ"})
	require.False(t, c.wants("600519.SH"))
	require.True(t, c.wants("000001.SZ"))

	c.setCodes(nil)
	require.True(t, c.wants("600519.SH"))
}
