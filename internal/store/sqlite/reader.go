package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/model"
)

// TradeFilter narrows trade history queries. Zero values mean "no filter".
type TradeFilter struct {
	Code  string
	From  time.Time
	To    time.Time
	Limit int
}

// LoadAccounts reads every account for in-memory restore at startup.
func (s *Store) LoadAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, balance, created_at FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var balance string
		var created int64
		if err := rows.Scan(&a.ID, &balance, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan account: %w", err)
		}
		if a.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("sqlite account %s balance: %w", a.ID, err)
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// LoadPositions reads every open position, ordered by account for restore.
func (s *Store) LoadPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, code, quantity, avg_price, updated_at
		FROM positions
		ORDER BY account_id, code
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var avg string
		var updated int64
		if err := rows.Scan(&p.AccountID, &p.Code, &p.Quantity, &avg, &updated); err != nil {
			return nil, fmt.Errorf("sqlite scan position: %w", err)
		}
		if p.AveragePrice, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("sqlite position %s/%s avg price: %w", p.AccountID, p.Code, err)
		}
		p.UpdatedAt = time.Unix(updated, 0).UTC()
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// LoadTrades reads the full trade log in chronological order for restore.
func (s *Store) LoadTrades(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, code, side, quantity, price, commission, total_amount, created_at
		FROM trades
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// TradesByAccount returns an account's trade history, newest first, with
// optional instrument / time-range / limit filters.
func (s *Store) TradesByAccount(ctx context.Context, accountID string, f TradeFilter) ([]model.Trade, error) {
	query := `
		SELECT id, account_id, code, side, quantity, price, commission, total_amount, created_at
		FROM trades
		WHERE account_id = ?`
	args := []any{accountID}

	if f.Code != "" {
		query += ` AND code = ?`
		args = append(args, f.Code)
	}
	if !f.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, f.To.Unix())
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query account trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrades(rows rowScanner) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var side, price, commission, total string
		var created int64
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Code, &side, &t.Quantity,
			&price, &commission, &total, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		t.Side = model.Side(side)
		var err error
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite trade %s price: %w", t.ID, err)
		}
		if t.Commission, err = decimal.NewFromString(commission); err != nil {
			return nil, fmt.Errorf("sqlite trade %s commission: %w", t.ID, err)
		}
		if t.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("sqlite trade %s total: %w", t.ID, err)
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// LoadStrategies reads every strategy for restore, ordered by ID.
func (s *Store) LoadStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, code, ma_short, ma_long, momentum_days, lot_size,
			position, avg_price, total_profit, last_trade_date, is_active, created_at, updated_at
		FROM strategies
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query strategies: %w", err)
	}
	defer rows.Close()

	var strategies []model.Strategy
	for rows.Next() {
		var st model.Strategy
		var avg, profit string
		var lastTrade, created, updated int64
		var active int
		if err := rows.Scan(&st.ID, &st.AccountID, &st.Code,
			&st.Params.MAShort, &st.Params.MALong, &st.Params.MomentumDays, &st.Params.LotSize,
			&st.Position, &avg, &profit, &lastTrade, &active, &created, &updated); err != nil {
			return nil, fmt.Errorf("sqlite scan strategy: %w", err)
		}
		if st.AvgPrice, err = decimal.NewFromString(avg); err != nil {
			return nil, fmt.Errorf("sqlite strategy %d avg price: %w", st.ID, err)
		}
		if st.TotalProfit, err = decimal.NewFromString(profit); err != nil {
			return nil, fmt.Errorf("sqlite strategy %d profit: %w", st.ID, err)
		}
		if lastTrade != 0 {
			st.LastTradeDate = time.Unix(lastTrade, 0).UTC()
		}
		st.IsActive = active != 0
		st.CreatedAt = time.Unix(created, 0).UTC()
		st.UpdatedAt = time.Unix(updated, 0).UTC()
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

// LoadInstruments reads persisted instrument prices, keyed by code. Used to
// carry last and previous session prices across restarts.
func (s *Store) LoadInstruments(ctx context.Context) (map[string]model.Instrument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, industry, market, last_price, prev_price FROM instruments`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query instruments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Instrument)
	for rows.Next() {
		var inst model.Instrument
		var last, prev string
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Industry, &inst.Market, &last, &prev); err != nil {
			return nil, fmt.Errorf("sqlite scan instrument: %w", err)
		}
		if inst.LastPrice, err = decimal.NewFromString(last); err != nil {
			return nil, fmt.Errorf("sqlite instrument %s last price: %w", inst.Code, err)
		}
		if inst.PrevPrice, err = decimal.NewFromString(prev); err != nil {
			return nil, fmt.Errorf("sqlite instrument %s prev price: %w", inst.Code, err)
		}
		out[inst.Code] = inst
	}
	return out, rows.Err()
}
