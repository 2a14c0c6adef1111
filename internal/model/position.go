package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the holding of one account in one instrument.
// A position exists only while Quantity > 0; it is created on first buy and
// deleted when a sell brings the quantity to zero.
type Position struct {
	AccountID    string          `json:"account_id"`
	Code         string          `json:"code"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"` // weighted average entry
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MarketValue returns Quantity × last at the given market price.
func (p *Position) MarketValue(last decimal.Decimal) decimal.Decimal {
	return last.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedProfit returns Quantity × (last − average entry).
func (p *Position) UnrealizedProfit(last decimal.Decimal) decimal.Decimal {
	return last.Sub(p.AveragePrice).Mul(decimal.NewFromInt(p.Quantity))
}
