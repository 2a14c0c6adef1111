package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/XavierD3728/stockquant/config"
	"github.com/XavierD3728/stockquant/internal/api"
	"github.com/XavierD3728/stockquant/internal/catalog"
	"github.com/XavierD3728/stockquant/internal/gateway"
	"github.com/XavierD3728/stockquant/internal/history"
	"github.com/XavierD3728/stockquant/internal/ledger"
	"github.com/XavierD3728/stockquant/internal/logger"
	"github.com/XavierD3728/stockquant/internal/metrics"
	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/notification"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
	"github.com/XavierD3728/stockquant/internal/refprice"
	redisstore "github.com/XavierD3728/stockquant/internal/store/redis"
	sqlitestore "github.com/XavierD3728/stockquant/internal/store/sqlite"
	"github.com/XavierD3728/stockquant/internal/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading engine",
	Long: `Start the price feed, strategy scheduler, HTTP API, WebSocket
gateway, and metrics server. Configuration comes from environment
variables; see config.Load for the full list and defaults.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	logr := logger.Init("stockquant", slog.LevelInfo)
	log.Println("[stockquant] starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- SQLite store ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[stockquant] sqlite init failed: %v", err)
		return err
	}
	defer store.Close()
	health.SetSQLiteOK(true)

	// ---- Instrument catalog & price feed ----
	entries, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Printf("[stockquant] catalog load failed: %v", err)
		return err
	}
	instruments := catalog.Instruments(entries)
	markets := make(map[string]string, len(instruments))
	for _, ins := range instruments {
		markets[ins.Code] = ins.Market
	}

	// Carry prices across restarts when the store has fresher ones.
	if persisted, err := store.LoadInstruments(ctx); err != nil {
		logr.Warn("load persisted instruments", "error", err)
	} else {
		for i, ins := range instruments {
			if p, ok := persisted[ins.Code]; ok {
				instruments[i].LastPrice = p.LastPrice
				instruments[i].PrevPrice = p.PrevPrice
			}
		}
	}

	recorder := history.NewRecorder(cfg.HistoryWindow)
	feed := pricefeed.New(instruments, cfg.PriceTickBoundPct, recorder)
	feed.OnTick(func(now time.Time, results []pricefeed.TickResult) {
		prom.TicksTotal.Inc()
		for _, r := range results {
			if r.Err != nil {
				prom.TickErrors.Inc()
			}
		}
		health.SetFeedOK(true)
		health.SetLastTickTime(now)
	})

	// ---- Optional reference price seeding ----
	if cfg.RefPriceBaseURL != "" {
		codes := make([]string, 0, len(instruments))
		for _, ins := range instruments {
			codes = append(codes, ins.Code)
		}
		rp, err := refprice.New(refprice.Config{
			BaseURL:    cfg.RefPriceBaseURL,
			APIKey:     cfg.RefPriceAPIKey,
			ClientCode: cfg.RefPriceClientCode,
			Password:   cfg.RefPricePassword,
			TOTPSecret: cfg.RefPriceTOTPSecret,
		})
		if err != nil {
			logr.Warn("refprice disabled", "error", err)
		} else if n, err := rp.Seed(ctx, feed, codes); err != nil {
			logr.Warn("refprice seed failed, using catalog prices", "error", err)
		} else {
			logr.Info("seeded prices from reference API", "instruments", n)
		}
	}

	// ---- Ledger & strategy registry ----
	led := ledger.New(cfg.CommissionRate, feed, store)
	mgr := strategy.NewManager(feed, store)

	accounts, err := store.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	positions, err := store.LoadPositions(ctx)
	if err != nil {
		return err
	}
	trades, err := store.LoadTrades(ctx)
	if err != nil {
		return err
	}
	led.Restore(accounts, positions, trades)

	strategies, err := store.LoadStrategies(ctx)
	if err != nil {
		return err
	}
	mgr.Restore(strategies)
	logr.Info("state restored",
		"accounts", len(accounts), "positions", len(positions),
		"trades", len(trades), "strategies", len(strategies))

	// ---- Redis quote publisher (optional) ----
	var redisQuoteCh chan pricefeed.Quote
	publisher, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, prom)
	if err != nil {
		log.Printf("[stockquant] WARNING: redis init failed: %v (continuing without redis)", err)
		health.SetRedisConnected(false)
	} else {
		defer publisher.Close()
		health.SetRedisConnected(true)
		redisQuoteCh = make(chan pricefeed.Quote, 1024)
		go publisher.Run(ctx, redisQuoteCh)
	}

	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), store.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- WebSocket quote hub ----
	hub := gateway.NewHub(prom)
	hubQuoteCh := make(chan pricefeed.Quote, 1024)
	go hub.Run(ctx, hubQuoteCh)

	// ---- Price tick loop, fanned out to redis + ws ----
	feedQuoteCh := make(chan pricefeed.Quote, 1024)
	go feed.Run(ctx, cfg.PriceTickInterval, feedQuoteCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case q, ok := <-feedQuoteCh:
				if !ok {
					return
				}
				select {
				case hubQuoteCh <- q:
				default:
				}
				if redisQuoteCh != nil {
					select {
					case redisQuoteCh <- q:
					default:
					}
				}
			}
		}
	}()

	// ---- Periodic instrument price snapshot ----
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, q := range feed.Quotes() {
					ins := model.Instrument{
						Code:      q.Code,
						Name:      q.Name,
						Industry:  q.Industry,
						Market:    markets[q.Code],
						LastPrice: q.Price,
						PrevPrice: q.PrevPrice,
					}
					if err := store.UpsertInstrument(ctx, ins); err != nil {
						logr.Warn("persist instrument", "code", q.Code, "error", err)
					}
				}
			}
		}
	}()

	// ---- Strategy scheduler ----
	scheduler := strategy.NewScheduler(mgr, led, recorder, cfg.StrategyScanInterval, prom, logr)
	var notifiers notification.Multi
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(notifiers) == 0 {
		scheduler.SetNotifier(notification.NewLogNotifier())
	} else {
		scheduler.SetNotifier(notifiers)
	}
	go scheduler.Run(ctx)

	// ---- HTTP API ----
	apiSrv := api.NewServer(api.Config{
		Addr:           cfg.HTTPAddr,
		Feed:           feed,
		Ledger:         led,
		Manager:        mgr,
		Trades:         store,
		Accounts:       store,
		Hub:            hub,
		InitialBalance: cfg.InitialBalance,
	})
	apiSrv.Start()

	log.Printf("[stockquant] ready: api=%s metrics=%s tick=%s scan=%s",
		cfg.HTTPAddr, cfg.MetricsAddr, cfg.PriceTickInterval, cfg.StrategyScanInterval)

	<-sigCh
	log.Println("[stockquant] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[stockquant] bye")
	return nil
}
