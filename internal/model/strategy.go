package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// StrategyParams are the immutable tuning parameters of a quant strategy.
// Invariants: MAShort < MALong, every field positive.
type StrategyParams struct {
	MAShort      int   `json:"ma_short" validate:"gt=0"`
	MALong       int   `json:"ma_long" validate:"gt=0,gtfield=MAShort"`
	MomentumDays int   `json:"momentum_days" validate:"gt=0"`
	LotSize      int64 `json:"lot_size" validate:"gt=0"`
}

// Validate checks the parameter invariants at construction time.
func (p StrategyParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

// MinHistory returns the number of closes the signal computation needs.
func (p StrategyParams) MinHistory() int {
	if p.MALong > p.MomentumDays {
		return p.MALong
	}
	return p.MomentumDays
}

// Strategy is one automated MA/momentum strategy bound to a single
// (account, instrument) pair. Runtime state advances only through trade
// execution results inside the scheduler: the position is either 0 (flat)
// or LotSize (one full lot held).
type Strategy struct {
	ID        int64          `json:"id"`
	AccountID string         `json:"account_id"`
	Code      string         `json:"code"`
	Params    StrategyParams `json:"params"`

	Position      int64           `json:"position"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	LastTradeDate time.Time       `json:"last_trade_date"` // zero = never traded
	IsActive      bool            `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TradedOn reports whether the strategy already traded on the calendar day
// of now, evaluated in loc. Enforces the at-most-one-trade-per-day rule.
func (s *Strategy) TradedOn(now time.Time, loc *time.Location) bool {
	if s.LastTradeDate.IsZero() {
		return false
	}
	y1, m1, d1 := s.LastTradeDate.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
