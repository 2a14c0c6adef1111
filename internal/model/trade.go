package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is an immutable, append-only execution record. It is never mutated
// after creation and forms the audit trail for accounting reconciliation.
type Trade struct {
	ID          string          `json:"id"` // ULID, time-sortable
	AccountID   string          `json:"account_id"`
	Code        string          `json:"code"`
	Side        Side            `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"` // execution price
	Commission  decimal.Decimal `json:"commission"`
	TotalAmount decimal.Decimal `json:"total_amount"` // Quantity × Price, before commission
	CreatedAt   time.Time       `json:"created_at"`
}
