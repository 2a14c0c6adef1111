package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/XavierD3728/stockquant/internal/ledger"
	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
	"github.com/XavierD3728/stockquant/internal/signal"
)

type fakeHistory map[string][]float64

func (f fakeHistory) Closes(code string) []float64 { return f[code] }

// risingCloses yields 20 closes climbing from 30 to 49: short MA above long
// MA and positive momentum, i.e. a BUY.
func risingCloses() []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = float64(30 + i)
	}
	return out
}

// fallingCloses is the mirror image, a SELL.
func fallingCloses() []float64 {
	out := make([]float64, 20)
	for i := range out {
		out[i] = float64(49 - i)
	}
	return out
}

type stubPrices struct{ price decimal.Decimal }

func (s stubPrices) Get(code string) (pricefeed.Quote, error) {
	return pricefeed.Quote{Code: code, Price: s.price}, nil
}

// harness wires a real ledger over a fixed price so automated trades move
// real balances.
type harness struct {
	mgr *Manager
	led *ledger.Ledger
	sch *Scheduler
}

func newHarness(t *testing.T, price string, closes fakeHistory) *harness {
	t.Helper()
	led := ledger.New(decimal.RequireFromString("0.0003"), stubPrices{price: decimal.RequireFromString(price)}, nil)
	_, err := led.CreateAccount("acc-1", decimal.NewFromInt(100000))
	require.NoError(t, err)

	mgr := NewManager(allInstruments{}, nil)
	sch := NewScheduler(mgr, led, closes, time.Minute, nil, nil)
	return &harness{mgr: mgr, led: led, sch: sch}
}

func tradingMoment() time.Time {
	// A Monday, well inside the session.
	return time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)
}

func TestScanBuysOnCrossover(t *testing.T) {
	h := newHarness(t, "50.00", fakeHistory{"600519.SH": risingCloses()})
	ctx := context.Background()

	s, err := h.mgr.Add(ctx, "acc-1", "600519.SH", validParams())
	require.NoError(t, err)

	results := h.sch.Scan(ctx, tradingMoment())
	require.Len(t, results, 1)
	require.Equal(t, signal.ActionBuy, results[0].Action)
	require.True(t, results[0].Executed)
	require.NoError(t, results[0].Err)

	// One lot of 100 at 50.00 debits 5000 plus 1.50 commission.
	acct, err := h.led.Account("acc-1")
	require.NoError(t, err)
	require.True(t, acct.Balance.Equal(decimal.RequireFromString("94998.50")),
		"got balance %s", acct.Balance)

	pos, err := h.led.Position("acc-1", "600519.SH")
	require.NoError(t, err)
	require.Equal(t, int64(100), pos.Quantity)
	require.True(t, pos.AveragePrice.Equal(decimal.RequireFromString("50.00")))

	got := h.mgr.List("acc-1")[0]
	require.Equal(t, int64(100), got.Position)
	require.True(t, got.AvgPrice.Equal(decimal.RequireFromString("50.00")))
	_ = s
}

func TestScanTradesAtMostOncePerDay(t *testing.T) {
	h := newHarness(t, "50.00", fakeHistory{"600519.SH": risingCloses()})
	ctx := context.Background()

	_, err := h.mgr.Add(ctx, "acc-1", "600519.SH", validParams())
	require.NoError(t, err)

	now := tradingMoment()
	results := h.sch.Scan(ctx, now)
	require.True(t, results[0].Executed)

	// Later the same day: skipped without evaluation.
	results = h.sch.Scan(ctx, now.Add(2*time.Hour))
	require.False(t, results[0].Executed)
	require.Equal(t, "traded today", results[0].Skipped)

	// Next day the strategy holds a position, so the BUY signal does not
	// execute again.
	results = h.sch.Scan(ctx, now.Add(24*time.Hour))
	require.False(t, results[0].Executed)
	require.Empty(t, results[0].Skipped)
	require.Equal(t, signal.ActionBuy, results[0].Action)

	acct, err := h.led.Account("acc-1")
	require.NoError(t, err)
	require.True(t, acct.Balance.Equal(decimal.RequireFromString("94998.50")))
}

func TestScanSellRealizesProfit(t *testing.T) {
	h := newHarness(t, "52.00", fakeHistory{"600519.SH": fallingCloses()})
	ctx := context.Background()

	_, err := h.mgr.Add(ctx, "acc-1", "600519.SH", validParams())
	require.NoError(t, err)

	// Open a position manually at 52.00 first, then hand it to the strategy.
	buy, err := h.led.Execute(ctx, "acc-1", "600519.SH", model.SideBuy, 100)
	require.NoError(t, err)
	s := h.mgr.List("acc-1")[0]
	require.NoError(t, h.mgr.markBought(ctx, s.ID, buy.Trade.Price, tradingMoment().Add(-48*time.Hour)))

	results := h.sch.Scan(ctx, tradingMoment())
	require.Len(t, results, 1)
	require.Equal(t, signal.ActionSell, results[0].Action)
	require.True(t, results[0].Executed, "err: %v", results[0].Err)

	// Sold at the same 52.00: realized profit is minus the sell commission.
	// proceeds 5200, entry 5200, commission 1.56.
	got := h.mgr.List("acc-1")[0]
	require.Equal(t, int64(0), got.Position)
	require.True(t, got.TotalProfit.Equal(decimal.RequireFromString("-1.56")),
		"got profit %s", got.TotalProfit)

	_, err = h.led.Position("acc-1", "600519.SH")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestScanHoldsWithoutEnoughHistory(t *testing.T) {
	h := newHarness(t, "50.00", fakeHistory{"600519.SH": {48, 49, 50}})
	ctx := context.Background()

	_, err := h.mgr.Add(ctx, "acc-1", "600519.SH", validParams())
	require.NoError(t, err)

	results := h.sch.Scan(ctx, tradingMoment())
	require.Equal(t, signal.ActionHold, results[0].Action)
	require.False(t, results[0].Executed)

	acct, err := h.led.Account("acc-1")
	require.NoError(t, err)
	require.True(t, acct.Balance.Equal(decimal.NewFromInt(100000)))
}

func TestScanSkipsInactiveStrategies(t *testing.T) {
	h := newHarness(t, "50.00", fakeHistory{"600519.SH": risingCloses()})
	ctx := context.Background()

	s, err := h.mgr.Add(ctx, "acc-1", "600519.SH", validParams())
	require.NoError(t, err)
	_, err = h.mgr.Toggle(ctx, "acc-1", s.ID)
	require.NoError(t, err)

	results := h.sch.Scan(ctx, tradingMoment())
	require.Empty(t, results)
}

func TestScanIsolatesFailures(t *testing.T) {
	// Balance too small for one lot at 50.00; the failure lands in the
	// result and the other strategy still trades.
	led := ledger.New(decimal.RequireFromString("0.0003"), stubPrices{price: decimal.RequireFromString("50.00")}, nil)
	_, err := led.CreateAccount("rich", decimal.NewFromInt(100000))
	require.NoError(t, err)
	_, err = led.CreateAccount("poor", decimal.NewFromInt(100))
	require.NoError(t, err)

	mgr := NewManager(allInstruments{}, nil)
	closes := fakeHistory{"600519.SH": risingCloses(), "000001.SZ": risingCloses()}
	sch := NewScheduler(mgr, led, closes, time.Minute, nil, nil)

	ctx := context.Background()
	_, err = mgr.Add(ctx, "poor", "600519.SH", validParams())
	require.NoError(t, err)
	_, err = mgr.Add(ctx, "rich", "000001.SZ", validParams())
	require.NoError(t, err)

	results := sch.Scan(ctx, tradingMoment())
	require.Len(t, results, 2)

	var failed, executed int
	for _, r := range results {
		if r.Err != nil {
			require.ErrorIs(t, r.Err, model.ErrInsufficientBalance)
			failed++
		}
		if r.Executed {
			executed++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 1, executed)
}
