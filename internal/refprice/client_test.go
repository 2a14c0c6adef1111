package refprice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ClientCode string `json:"clientcode"`
			Password   string `json:"password"`
			TOTP       string `json:"totp"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "CLIENT1", req.ClientCode)

		ok := totp.Validate(req.TOTP, testSecret)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "bad totp"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]string{"access_token": "token-123"},
		})
	})

	mux.HandleFunc("/quotes/prev-close", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]string{
				"600519.SH": "1755.32",
				"000001.SZ": "not-a-number",
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    baseURL,
		APIKey:     "key",
		ClientCode: "CLIENT1",
		Password:   "pw",
		TOTPSecret: testSecret,
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x"})
	require.Error(t, err)
}

func TestSeedAppliesFetchedCloses(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL)

	feed := pricefeed.New([]model.Instrument{
		{Code: "600519.SH", Name: "Kweichow Moutai", LastPrice: decimal.NewFromInt(1800)},
		{Code: "000001.SZ", Name: "Ping An Bank", LastPrice: decimal.NewFromInt(12)},
	}, 0.02, nil)

	n, err := c.Seed(context.Background(), feed, []string{"600519.SH", "000001.SZ"})
	require.NoError(t, err)
	// The unparseable close is dropped.
	require.Equal(t, 1, n)

	q, err := feed.Get("600519.SH")
	require.NoError(t, err)
	require.True(t, q.Price.Equal(decimal.RequireFromString("1755.32")))

	q, err = feed.Get("000001.SZ")
	require.NoError(t, err)
	require.True(t, q.Price.Equal(decimal.NewFromInt(12)))
}

func TestLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "nope"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL)
	err := c.Login(context.Background())
	require.Error(t, err)
}
