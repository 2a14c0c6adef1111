package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the cash balance for a registered trading account.
// Balance is mutated exclusively through ledger trade execution.
type Account struct {
	ID        string          `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}
