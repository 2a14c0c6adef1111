// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Trading
	CommissionRate decimal.Decimal // proportional fee on trade notional
	InitialBalance decimal.Decimal // seed balance for new accounts

	// Simulation cadences
	PriceTickInterval    time.Duration
	StrategyScanInterval time.Duration
	PriceTickBoundPct    float64 // max per-tick perturbation, e.g. 0.02 = ±2%
	HistoryWindow        int     // recorded closes kept per instrument

	// Infrastructure
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string
	HTTPAddr      string
	CatalogPath   string // optional YAML instrument catalog override

	// Alerting (optional)
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	// Reference price API (optional; feed falls back to catalog seeds)
	RefPriceBaseURL    string
	RefPriceAPIKey     string
	RefPriceClientCode string
	RefPricePassword   string
	RefPriceTOTPSecret string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		CommissionRate: getEnvDecimal("COMMISSION_RATE", "0.0003"),
		InitialBalance: getEnvDecimal("INITIAL_BALANCE", "100000"),

		PriceTickInterval:    time.Duration(getEnvInt("PRICE_TICK_INTERVAL_SECONDS", 30)) * time.Second,
		StrategyScanInterval: time.Duration(getEnvInt("STRATEGY_SCAN_INTERVAL_SECONDS", 60)) * time.Second,
		PriceTickBoundPct:    getEnvFloat("PRICE_TICK_BOUND_PCT", 0.02),
		HistoryWindow:        getEnvInt("HISTORY_WINDOW", 250),

		SQLitePath:    getEnv("SQLITE_PATH", "data/stockquant.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		CatalogPath:   getEnv("CATALOG_PATH", ""),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		RefPriceBaseURL:    getEnv("REFPRICE_BASE_URL", ""),
		RefPriceAPIKey:     getEnv("REFPRICE_API_KEY", ""),
		RefPriceClientCode: getEnv("REFPRICE_CLIENT_CODE", ""),
		RefPricePassword:   getEnv("REFPRICE_PASSWORD", ""),
		RefPriceTOTPSecret: getEnv("REFPRICE_TOTP_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}
