// Package refprice fetches real previous-session closes from an external
// quote service to seed the simulated feed at startup. The service uses a
// TOTP-protected login; a failed fetch is never fatal because the catalog
// already carries usable seed prices.
package refprice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/pricefeed"
)

// Config configures the reference price client.
type Config struct {
	BaseURL    string
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
	Timeout    time.Duration // default 7s
}

// Client talks to the reference price HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	accessToken string
}

// New creates a client. Returns an error when the config is incomplete.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.ClientCode == "" || cfg.TOTPSecret == "" {
		return nil, errors.New("refprice: base URL, client code and TOTP secret are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type loginResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
	Message string `json:"message"`
}

// Login generates a one-time TOTP code from the shared secret and exchanges
// it for an access token.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("refprice: generate totp: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refprice: login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("refprice: read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refprice: login status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return fmt.Errorf("refprice: decode login response: %w", err)
	}
	if !lr.Status || lr.Data.AccessToken == "" {
		return fmt.Errorf("refprice: login failed: %s", lr.Message)
	}

	c.accessToken = lr.Data.AccessToken
	return nil
}

type closesResponse struct {
	Status bool              `json:"status"`
	Data   map[string]string `json:"data"` // code -> close, decimal string
}

// PrevCloses fetches the previous session close per instrument code.
// Codes missing from the response are simply absent from the result.
func (c *Client) PrevCloses(ctx context.Context, codes []string) (map[string]decimal.Decimal, error) {
	payload, _ := json.Marshal(map[string]any{"codes": codes})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/quotes/prev-close", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PrivateKey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refprice: quotes request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refprice: quotes status %d", resp.StatusCode)
	}

	var cr closesResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("refprice: decode quotes response: %w", err)
	}
	if !cr.Status {
		return nil, errors.New("refprice: quotes request rejected")
	}

	out := make(map[string]decimal.Decimal, len(cr.Data))
	for code, raw := range cr.Data {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			log.Printf("[refprice] ignoring bad close for %s: %q", code, raw)
			continue
		}
		out[code] = price
	}
	return out, nil
}

// Seed logs in, fetches previous closes for every code and pushes them into
// the feed. Returns the number of instruments seeded.
func (c *Client) Seed(ctx context.Context, feed *pricefeed.Feed, codes []string) (int, error) {
	if err := c.Login(ctx); err != nil {
		return 0, err
	}
	closes, err := c.PrevCloses(ctx, codes)
	if err != nil {
		return 0, err
	}
	for code, price := range closes {
		feed.Seed(code, price)
	}
	return len(closes), nil
}
