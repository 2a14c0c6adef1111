// Package ledger is the authoritative store of per-account balance and
// per-(account, instrument) position state. All mutation goes through trade
// execution, which serializes per account so concurrent buys can never
// jointly overdraw a balance.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/pricefeed"
)

// PriceSource supplies the authoritative execution price. A trade's final
// commit re-reads it under the account lock rather than trusting the price
// the caller observed earlier.
type PriceSource interface {
	Get(code string) (pricefeed.Quote, error)
}

// Store is the persistence capability the ledger requires. CommitTrade must
// apply the trade record, the balance update, and the position change in a
// single transaction; a position with Quantity 0 means the row is removed.
type Store interface {
	CommitTrade(ctx context.Context, trade model.Trade, balance decimal.Decimal, pos model.Position) error
}

// Ledger holds account, position, and trade state.
type Ledger struct {
	commissionRate decimal.Decimal
	prices         PriceSource
	store          Store // nil disables persistence

	mu        sync.RWMutex
	accounts  map[string]*model.Account
	positions map[string]map[string]*model.Position // account → code → position
	trades    []model.Trade                         // append-only audit trail

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex // per-account execution locks
}

// New creates an empty ledger. store may be nil for in-memory operation.
func New(commissionRate decimal.Decimal, prices PriceSource, store Store) *Ledger {
	return &Ledger{
		commissionRate: commissionRate,
		prices:         prices,
		store:          store,
		accounts:       make(map[string]*model.Account),
		positions:      make(map[string]map[string]*model.Position),
		locks:          make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing executions for one account.
func (l *Ledger) accountLock(accountID string) *sync.Mutex {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	return m
}

// CreateAccount registers a new account with the given starting balance.
func (l *Ledger) CreateAccount(id string, balance decimal.Decimal) (*model.Account, error) {
	if id == "" || balance.IsNegative() {
		return nil, fmt.Errorf("%w: account id and non-negative balance required", model.ErrInvalidParameters)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[id]; exists {
		return nil, fmt.Errorf("account %s already exists", id)
	}
	acct := &model.Account{ID: id, Balance: balance, CreatedAt: time.Now()}
	l.accounts[id] = acct
	cp := *acct
	return &cp, nil
}

// Account returns a copy of the account, or ErrNotFound.
func (l *Ledger) Account(id string) (model.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("%w: account %s", model.ErrNotFound, id)
	}
	return *acct, nil
}

// Position returns a copy of the (account, code) position, or ErrNotFound.
func (l *Ledger) Position(accountID, code string) (model.Position, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[accountID][code]
	if !ok {
		return model.Position{}, fmt.Errorf("%w: position %s/%s", model.ErrNotFound, accountID, code)
	}
	return *pos, nil
}

// Positions returns copies of all open positions for the account.
func (l *Ledger) Positions(accountID string) []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Position, 0, len(l.positions[accountID]))
	for _, pos := range l.positions[accountID] {
		out = append(out, *pos)
	}
	return out
}

// Trades returns a snapshot of the account's trade records, oldest first.
func (l *Ledger) Trades(accountID string) []model.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Trade
	for _, tr := range l.trades {
		if tr.AccountID == accountID {
			out = append(out, tr)
		}
	}
	return out
}

// PositionDetail is one position enriched with current market data.
type PositionDetail struct {
	model.Position
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	Profit       decimal.Decimal `json:"profit"`
}

// AccountSummary is the balance plus enriched position totals.
type AccountSummary struct {
	AccountID          string           `json:"account_id"`
	Balance            decimal.Decimal  `json:"balance"`
	TotalPositionValue decimal.Decimal  `json:"total_position_value"`
	TotalProfit        decimal.Decimal  `json:"total_profit"`
	Positions          []PositionDetail `json:"positions"`
}

// Summary computes the account's balance, market value, and unrealized
// profit against current feed prices. Instruments missing from the feed
// contribute their entry cost with zero profit.
func (l *Ledger) Summary(accountID string) (AccountSummary, error) {
	acct, err := l.Account(accountID)
	if err != nil {
		return AccountSummary{}, err
	}

	sum := AccountSummary{
		AccountID:          accountID,
		Balance:            acct.Balance,
		TotalPositionValue: decimal.Zero,
		TotalProfit:        decimal.Zero,
	}
	for _, pos := range l.Positions(accountID) {
		detail := PositionDetail{Position: pos, CurrentPrice: pos.AveragePrice}
		if q, err := l.prices.Get(pos.Code); err == nil {
			detail.Name = q.Name
			detail.CurrentPrice = q.Price
		}
		detail.MarketValue = pos.MarketValue(detail.CurrentPrice)
		detail.Profit = pos.UnrealizedProfit(detail.CurrentPrice)
		sum.TotalPositionValue = sum.TotalPositionValue.Add(detail.MarketValue)
		sum.TotalProfit = sum.TotalProfit.Add(detail.Profit)
		sum.Positions = append(sum.Positions, detail)
	}
	return sum, nil
}

// Restore hydrates ledger state from persisted rows at startup.
func (l *Ledger) Restore(accounts []model.Account, positions []model.Position, trades []model.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range accounts {
		acct := accounts[i]
		l.accounts[acct.ID] = &acct
	}
	for i := range positions {
		pos := positions[i]
		if pos.Quantity <= 0 {
			continue
		}
		if l.positions[pos.AccountID] == nil {
			l.positions[pos.AccountID] = make(map[string]*model.Position)
		}
		l.positions[pos.AccountID][pos.Code] = &pos
	}
	l.trades = append(l.trades, trades...)
}
