package strategy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/ledger"
	"github.com/XavierD3728/stockquant/internal/metrics"
	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/notification"
	"github.com/XavierD3728/stockquant/internal/session"
	"github.com/XavierD3728/stockquant/internal/signal"
)

// Executor is the trade-execution contract the scheduler drives. It is the
// same contract the manual trade path uses (implemented by ledger.Ledger).
type Executor interface {
	Execute(ctx context.Context, accountID, code string, side model.Side, quantity int64) (*ledger.TradeResult, error)
}

// HistorySource supplies recorded closes, oldest first.
type HistorySource interface {
	Closes(code string) []float64
}

// ScanResult captures the outcome for one strategy within a scan. One
// strategy's failure never halts the scan; it is recorded here instead.
type ScanResult struct {
	StrategyID int64
	Code       string
	Action     signal.Action
	Executed   bool
	Skipped    string // non-empty when evaluation was skipped, e.g. "traded today"
	Err        error
}

// Scheduler periodically evaluates every active strategy and executes at
// most one trade per strategy per trading day.
type Scheduler struct {
	mgr      *Manager
	executor Executor
	history  HistorySource
	interval time.Duration
	metrics  *metrics.Metrics      // optional
	notifier notification.Notifier // optional
	logger   *slog.Logger
}

// SetNotifier registers an alert channel for automated executions. Must be
// called before Run starts.
func (sch *Scheduler) SetNotifier(n notification.Notifier) {
	sch.notifier = n
}

func (sch *Scheduler) notify(alert notification.Alert) {
	if sch.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sch.notifier.Send(ctx, alert); err != nil {
			sch.logger.Warn("alert delivery failed", "title", alert.Title, "error", err)
		}
	}()
}

// NewScheduler wires the scan loop. m may be nil to disable metrics.
func NewScheduler(mgr *Manager, executor Executor, history HistorySource, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		mgr:      mgr,
		executor: executor,
		history:  history,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

// Run scans on the configured interval until ctx is cancelled. Cancellation
// is honored between cycles, never mid-mutation.
func (sch *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sch.Scan(ctx, now)
		}
	}
}

// Scan evaluates every active strategy once and returns per-strategy
// results. Failures are isolated: an error in one strategy is captured in
// its result and the scan proceeds.
func (sch *Scheduler) Scan(ctx context.Context, now time.Time) []ScanResult {
	start := time.Now()
	active := sch.mgr.Active()

	if sch.metrics != nil {
		sch.metrics.ScansTotal.Inc()
		sch.metrics.ActiveStrategies.Set(float64(len(active)))
	}

	results := make([]ScanResult, 0, len(active))
	for _, s := range active {
		res := sch.evaluate(ctx, s, now)
		if res.Err != nil {
			sch.logger.Warn("strategy evaluation failed",
				"strategy_id", s.ID, "code", s.Code, "error", res.Err)
			if sch.metrics != nil {
				sch.metrics.TradeFailures.WithLabelValues(failureReason(res.Err)).Inc()
			}
			sch.notify(notification.TradeFailed(s.ID, s.Code, res.Err))
		}
		results = append(results, res)
	}

	if sch.metrics != nil {
		sch.metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}
	return results
}

func (sch *Scheduler) evaluate(ctx context.Context, s model.Strategy, now time.Time) ScanResult {
	res := ScanResult{StrategyID: s.ID, Code: s.Code, Action: signal.ActionHold}

	// At most one automated trade per strategy per calendar day.
	if s.TradedOn(now, session.CST) {
		res.Skipped = "traded today"
		return res
	}

	closes := sch.history.Closes(s.Code)
	res.Action = signal.Evaluate(closes, s.Params)
	if sch.metrics != nil {
		sch.metrics.SignalsTotal.WithLabelValues(string(res.Action)).Inc()
	}

	switch {
	case res.Action == signal.ActionBuy && s.Position == 0:
		trade, err := sch.executor.Execute(ctx, s.AccountID, s.Code, model.SideBuy, s.Params.LotSize)
		if err != nil {
			res.Err = err
			return res
		}
		if err := sch.mgr.markBought(ctx, s.ID, trade.Trade.Price, now); err != nil {
			res.Err = err
			return res
		}
		res.Executed = true
		if sch.metrics != nil {
			sch.metrics.TradesTotal.WithLabelValues("BUY", "auto").Inc()
		}
		sch.logger.Info("automated buy executed",
			"strategy_id", s.ID, "code", s.Code,
			"quantity", s.Params.LotSize, "price", trade.Trade.Price.String())
		sch.notify(notification.TradeExecuted(s.ID, trade.Trade))

	case res.Action == signal.ActionSell && s.Position > 0:
		trade, err := sch.executor.Execute(ctx, s.AccountID, s.Code, model.SideSell, s.Position)
		if err != nil {
			res.Err = err
			return res
		}
		// Realized profit = proceeds − quantity × entry − commission.
		profit := trade.Trade.TotalAmount.
			Sub(s.AvgPrice.Mul(decimal.NewFromInt(s.Position))).
			Sub(trade.Trade.Commission)
		if err := sch.mgr.markSold(ctx, s.ID, profit, now); err != nil {
			res.Err = err
			return res
		}
		res.Executed = true
		if sch.metrics != nil {
			sch.metrics.TradesTotal.WithLabelValues("SELL", "auto").Inc()
		}
		sch.logger.Info("automated sell executed",
			"strategy_id", s.ID, "code", s.Code,
			"quantity", s.Position, "profit", profit.String())
		sch.notify(notification.TradeExecuted(s.ID, trade.Trade))
	}

	return res
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, model.ErrInsufficientPosition):
		return "insufficient_position"
	case errors.Is(err, model.ErrUnknownInstrument):
		return "unknown_instrument"
	case errors.Is(err, model.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
