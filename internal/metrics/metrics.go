// Package metrics registers Prometheus metrics for the trading engine and
// serves /metrics plus a JSON /healthz endpoint.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	// Price feed
	TicksTotal prometheus.Counter
	TickErrors prometheus.Counter

	// Trading
	TradesTotal   *prometheus.CounterVec // labels: side, origin (auto|manual)
	TradeFailures *prometheus.CounterVec // labels: reason

	// Scheduler
	ScansTotal       prometheus.Counter
	ScanDuration     prometheus.Histogram
	SignalsTotal     *prometheus.CounterVec // labels: action
	ActiveStrategies prometheus.Gauge

	// Quote publishing
	QuotePublishErrors prometheus.Counter
	WSClients          prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockquant_price_ticks_total",
			Help: "Total price feed tick cycles completed",
		}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockquant_price_tick_errors_total",
			Help: "Per-instrument perturbation failures within tick cycles",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockquant_trades_total",
			Help: "Executed trades by side and origin",
		}, []string{"side", "origin"}),
		TradeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockquant_trade_failures_total",
			Help: "Rejected or failed trade executions by reason",
		}, []string{"reason"}),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockquant_strategy_scans_total",
			Help: "Total scheduler scan cycles",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockquant_strategy_scan_duration_seconds",
			Help:    "Wall time of one scheduler scan over all active strategies",
			Buckets: prometheus.DefBuckets,
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockquant_signals_total",
			Help: "Signal evaluations by resulting action",
		}, []string{"action"}),
		ActiveStrategies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockquant_active_strategies",
			Help: "Number of strategies evaluated in the latest scan",
		}),
		QuotePublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockquant_quote_publish_errors_total",
			Help: "Failed quote publications to Redis",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockquant_ws_clients",
			Help: "Connected websocket quote-stream clients",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TickErrors,
		m.TradesTotal,
		m.TradeFailures,
		m.ScansTotal,
		m.ScanDuration,
		m.SignalsTotal,
		m.ActiveStrategies,
		m.QuotePublishErrors,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	FeedOK         bool      `json:"feed_ok"`
	LastTickTime   time.Time `json:"last_tick_time"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetFeedOK(v bool) {
	h.mu.Lock()
	h.FeedOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// StartLivenessChecker periodically pings Redis and SQLite and records
// latency. rdb and db may be nil when the dependency is not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if rdb != nil {
					start := time.Now()
					err := rdb.Ping(ctx).Err()
					h.mu.Lock()
					h.RedisConnected = err == nil
					h.RedisLatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
					h.mu.Unlock()
				}
				if db != nil {
					start := time.Now()
					err := db.PingContext(ctx)
					h.mu.Lock()
					h.SQLiteOK = err == nil
					h.SQLiteLatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
					h.mu.Unlock()
				}
				h.mu.Lock()
				h.LastCheckAt = time.Now()
				h.mu.Unlock()
			}
		}
	}()
}

// ServeHTTP renders the health status as JSON. Returns 503 when SQLite,
// the primary store, is down.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	status := *h
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !status.SQLiteOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
