package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/pkg/id"
)

// TradeResult is the outcome of a successful execution.
type TradeResult struct {
	Trade    model.Trade     `json:"trade"`
	Balance  decimal.Decimal `json:"balance"`  // account balance after the trade
	Position model.Position  `json:"position"` // resulting position; Quantity 0 = closed
}

// Execute applies a buy or sell for the account under the commission model.
// It is the single contract shared by the manual path and the scheduler.
//
// The per-account lock is held across the balance check, the store commit,
// and the in-memory mutation, so two concurrent executions for one account
// can never interleave their check-then-act sequences. The execution price
// is re-read from the feed inside the lock.
//
// On any error nothing is mutated: a store failure rolls the operation back
// and surfaces as ErrPersistence.
func (l *Ledger) Execute(ctx context.Context, accountID, code string, side model.Side, quantity int64) (*TradeResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidParameters)
	}
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side %q", model.ErrInvalidParameters, side)
	}

	lock := l.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	quote, err := l.prices.Get(code)
	if err != nil {
		return nil, err
	}
	price := quote.Price

	qty := decimal.NewFromInt(quantity)
	amount := price.Mul(qty)
	commission := amount.Mul(l.commissionRate).Round(2)

	l.mu.RLock()
	acct, ok := l.accounts[accountID]
	if !ok {
		l.mu.RUnlock()
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, accountID)
	}
	balance := acct.Balance
	var held model.Position
	if pos, ok := l.positions[accountID][code]; ok {
		held = *pos
	}
	l.mu.RUnlock()

	now := time.Now()
	var newBalance decimal.Decimal
	var newPos model.Position

	switch side {
	case model.SideBuy:
		cost := amount.Add(commission)
		if balance.LessThan(cost) {
			return nil, fmt.Errorf("%w: need %s, have %s", model.ErrInsufficientBalance, cost, balance)
		}
		newBalance = balance.Sub(cost)
		if held.Quantity > 0 {
			// Weighted average entry: (avg×q0 + amount) / (q0 + q)
			totalCost := held.AveragePrice.Mul(decimal.NewFromInt(held.Quantity)).Add(amount)
			newPos = model.Position{
				AccountID:    accountID,
				Code:         code,
				Quantity:     held.Quantity + quantity,
				AveragePrice: totalCost.Div(decimal.NewFromInt(held.Quantity + quantity)),
				UpdatedAt:    now,
			}
		} else {
			newPos = model.Position{
				AccountID:    accountID,
				Code:         code,
				Quantity:     quantity,
				AveragePrice: price,
				UpdatedAt:    now,
			}
		}

	case model.SideSell:
		if held.Quantity < quantity {
			return nil, fmt.Errorf("%w: hold %d, sell %d", model.ErrInsufficientPosition, held.Quantity, quantity)
		}
		newBalance = balance.Add(amount.Sub(commission))
		newPos = model.Position{
			AccountID:    accountID,
			Code:         code,
			Quantity:     held.Quantity - quantity,
			AveragePrice: held.AveragePrice,
			UpdatedAt:    now,
		}
		if newPos.Quantity == 0 {
			newPos.AveragePrice = decimal.Zero
		}
	}

	trade := model.Trade{
		ID:          id.New(),
		AccountID:   accountID,
		Code:        code,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		Commission:  commission,
		TotalAmount: amount,
		CreatedAt:   now,
	}

	if l.store != nil {
		if err := l.store.CommitTrade(ctx, trade, newBalance, newPos); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
	}

	l.mu.Lock()
	acct.Balance = newBalance
	if newPos.Quantity == 0 {
		delete(l.positions[accountID], code)
	} else {
		if l.positions[accountID] == nil {
			l.positions[accountID] = make(map[string]*model.Position)
		}
		p := newPos
		l.positions[accountID][code] = &p
	}
	l.trades = append(l.trades, trade)
	l.mu.Unlock()

	return &TradeResult{Trade: trade, Balance: newBalance, Position: newPos}, nil
}
