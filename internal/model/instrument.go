package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument represents a tradeable listed stock.
type Instrument struct {
	Code       string          `json:"code"` // exchange-qualified, e.g. "600519.SH"
	Name       string          `json:"name"`
	Industry   string          `json:"industry"`
	Market     string          `json:"market"` // board segment, e.g. main board / STAR
	LastPrice  decimal.Decimal `json:"last_price"`
	PrevPrice  decimal.Decimal `json:"prev_price"` // previous session close
	LastUpdate time.Time       `json:"last_update"`
}

// ChangePercent returns the percentage move of LastPrice against the previous
// close, rounded to 2 decimals. Zero when there is no reference close yet.
func (i *Instrument) ChangePercent() decimal.Decimal {
	if i.PrevPrice.IsZero() {
		return decimal.Zero
	}
	return i.LastPrice.Sub(i.PrevPrice).
		Div(i.PrevPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
