package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/XavierD3728/stockquant/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCommitTradeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acc := model.Account{ID: "acc-1", Balance: dec("100000"), CreatedAt: time.Now()}
	require.NoError(t, s.InsertAccount(ctx, acc))

	trade := model.Trade{
		ID:          "01J0000000000000000000TEST",
		AccountID:   "acc-1",
		Code:        "600519.SH",
		Side:        model.SideBuy,
		Quantity:    100,
		Price:       dec("50.00"),
		Commission:  dec("1.50"),
		TotalAmount: dec("5000.00"),
		CreatedAt:   time.Now(),
	}
	pos := model.Position{
		AccountID:    "acc-1",
		Code:         "600519.SH",
		Quantity:     100,
		AveragePrice: dec("50.00"),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.CommitTrade(ctx, trade, dec("94998.50"), pos))

	accounts, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.True(t, accounts[0].Balance.Equal(dec("94998.50")))

	positions, err := s.LoadPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, int64(100), positions[0].Quantity)
	require.True(t, positions[0].AveragePrice.Equal(dec("50.00")))

	trades, err := s.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, model.SideBuy, trades[0].Side)
	require.True(t, trades[0].Commission.Equal(dec("1.50")))
}

func TestCommitTradeDeletesClosedPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertAccount(ctx, model.Account{ID: "acc-1", Balance: dec("100000"), CreatedAt: time.Now()}))

	buy := model.Trade{
		ID: "01TRADEBUY", AccountID: "acc-1", Code: "000001.SZ", Side: model.SideBuy,
		Quantity: 100, Price: dec("10.00"), Commission: dec("0.30"), TotalAmount: dec("1000.00"),
		CreatedAt: time.Now(),
	}
	open := model.Position{AccountID: "acc-1", Code: "000001.SZ", Quantity: 100, AveragePrice: dec("10.00"), UpdatedAt: time.Now()}
	require.NoError(t, s.CommitTrade(ctx, buy, dec("98999.70"), open))

	sell := model.Trade{
		ID: "01TRADESELL", AccountID: "acc-1", Code: "000001.SZ", Side: model.SideSell,
		Quantity: 100, Price: dec("11.00"), Commission: dec("0.33"), TotalAmount: dec("1100.00"),
		CreatedAt: time.Now(),
	}
	closed := model.Position{AccountID: "acc-1", Code: "000001.SZ", Quantity: 0}
	require.NoError(t, s.CommitTrade(ctx, sell, dec("100099.37"), closed))

	positions, err := s.LoadPositions(ctx)
	require.NoError(t, err)
	require.Empty(t, positions)

	trades, err := s.LoadTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
}

func TestCommitTradeUnknownAccountRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	trade := model.Trade{
		ID: "01TRADEGHOST", AccountID: "ghost", Code: "600519.SH", Side: model.SideBuy,
		Quantity: 1, Price: dec("50"), Commission: dec("0.02"), TotalAmount: dec("50"),
		CreatedAt: time.Now(),
	}
	err := s.CommitTrade(ctx, trade, dec("0"), model.Position{AccountID: "ghost", Code: "600519.SH", Quantity: 1, AveragePrice: dec("50")})
	require.Error(t, err)

	trades, err := s.LoadTrades(ctx)
	require.NoError(t, err)
	require.Empty(t, trades)
}

func TestStrategyPersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	st := &model.Strategy{
		AccountID: "acc-1",
		Code:      "600519.SH",
		Params:    model.StrategyParams{MAShort: 5, MALong: 20, MomentumDays: 10, LotSize: 100},
		AvgPrice:  decimal.Zero, TotalProfit: decimal.Zero,
		IsActive:  true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.InsertStrategy(ctx, st))
	require.Greater(t, st.ID, int64(0))

	st.Position = 100
	st.AvgPrice = dec("50.00")
	st.LastTradeDate = now
	st.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.UpdateStrategy(ctx, *st))

	loaded, err := s.LoadStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	require.Equal(t, st.ID, got.ID)
	require.Equal(t, 5, got.Params.MAShort)
	require.Equal(t, int64(100), got.Position)
	require.True(t, got.AvgPrice.Equal(dec("50.00")))
	require.False(t, got.LastTradeDate.IsZero())
	require.True(t, got.IsActive)
}

func TestUpdateStrategyMissingID(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateStrategy(context.Background(), model.Strategy{
		ID: 42, AvgPrice: decimal.Zero, TotalProfit: decimal.Zero, UpdatedAt: time.Now(),
	})
	require.Error(t, err)
}

func TestTradesByAccountFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertAccount(ctx, model.Account{ID: "acc-1", Balance: dec("100000"), CreatedAt: time.Now()}))

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	codes := []string{"600519.SH", "000001.SZ", "600519.SH"}
	for i, code := range codes {
		trade := model.Trade{
			ID: string(rune('A'+i)) + "-trade", AccountID: "acc-1", Code: code, Side: model.SideBuy,
			Quantity: 10, Price: dec("10"), Commission: dec("0.03"), TotalAmount: dec("100"),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		pos := model.Position{AccountID: "acc-1", Code: code, Quantity: int64(10 * (i + 1)), AveragePrice: dec("10"), UpdatedAt: trade.CreatedAt}
		require.NoError(t, s.CommitTrade(ctx, trade, dec("99000"), pos))
	}

	all, err := s.TradesByAccount(ctx, "acc-1", TradeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	require.True(t, all[0].CreatedAt.After(all[2].CreatedAt))

	byCode, err := s.TradesByAccount(ctx, "acc-1", TradeFilter{Code: "600519.SH"})
	require.NoError(t, err)
	require.Len(t, byCode, 2)

	windowed, err := s.TradesByAccount(ctx, "acc-1", TradeFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	require.Equal(t, "000001.SZ", windowed[0].Code)

	limited, err := s.TradesByAccount(ctx, "acc-1", TradeFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	none, err := s.TradesByAccount(ctx, "other", TradeFilter{})
	require.NoError(t, err)
	require.Empty(t, none)
}
