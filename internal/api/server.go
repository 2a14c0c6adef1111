// Package api provides the HTTP surface of the trading system.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/gateway"
	"github.com/XavierD3728/stockquant/internal/ledger"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
	"github.com/XavierD3728/stockquant/internal/store/sqlite"
	"github.com/XavierD3728/stockquant/internal/strategy"
	"github.com/XavierD3728/stockquant/internal/model"
)

// TradeReader answers trade history queries from persistent storage.
type TradeReader interface {
	TradesByAccount(ctx context.Context, accountID string, f sqlite.TradeFilter) ([]model.Trade, error)
}

// AccountWriter persists newly created accounts.
type AccountWriter interface {
	InsertAccount(ctx context.Context, acc model.Account) error
}

// Server wires the trading components into HTTP handlers.
type Server struct {
	feed     *pricefeed.Feed
	ledger   *ledger.Ledger
	manager  *strategy.Manager
	trades   TradeReader
	accounts AccountWriter
	hub      *gateway.Hub

	initialBalance decimal.Decimal
	validate       *validator.Validate

	addr string
	srv  *http.Server
}

// Config carries the Server dependencies. Hub, Trades and Accounts may be
// nil; the matching endpoints then degrade gracefully.
type Config struct {
	Addr           string
	Feed           *pricefeed.Feed
	Ledger         *ledger.Ledger
	Manager        *strategy.Manager
	Trades         TradeReader
	Accounts       AccountWriter
	Hub            *gateway.Hub
	InitialBalance decimal.Decimal
}

// NewServer builds the server and its routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		feed:           cfg.Feed,
		ledger:         cfg.Ledger,
		manager:        cfg.Manager,
		trades:         cfg.Trades,
		accounts:       cfg.Accounts,
		hub:            cfg.Hub,
		initialBalance: cfg.InitialBalance,
		validate:       validator.New(),
		addr:           cfg.Addr,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/quotes", s.handleQuotes)
	mux.HandleFunc("GET /api/v1/quotes/{code}", s.handleQuote)
	mux.HandleFunc("GET /api/v1/account", s.handleAccount)
	mux.HandleFunc("POST /api/v1/trades", s.handleTrade)
	mux.HandleFunc("GET /api/v1/trades", s.handleTradeHistory)
	mux.HandleFunc("POST /api/v1/strategies", s.handleCreateStrategy)
	mux.HandleFunc("GET /api/v1/strategies", s.handleListStrategies)
	mux.HandleFunc("POST /api/v1/strategies/{id}/toggle", s.handleToggleStrategy)
	if s.hub != nil {
		mux.HandleFunc("GET /ws/quotes", s.hub.HandleWS)
	}

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
