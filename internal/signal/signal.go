// Package signal computes trade signals from a price history using a moving
// average crossover combined with a momentum filter. Evaluation is a pure
// function: deterministic and side-effect free.
package signal

import "github.com/XavierD3728/stockquant/internal/model"

// Action is the decision for one evaluation cycle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Evaluate returns the signal for the given ordered closes (oldest first).
//
// Rules:
//   - HOLD whenever len(closes) < max(maLong, momentumDays)
//   - BUY when MA(short) > MA(long) and momentum > 0
//   - SELL when MA(short) < MA(long) and momentum < 0
//   - HOLD otherwise; ties resolve to HOLD, no trade on ambiguity
//
// Momentum is the relative change against the close momentumDays back:
// (last − closes[n−momentumDays]) / closes[n−momentumDays].
func Evaluate(closes []float64, params model.StrategyParams) Action {
	n := len(closes)
	if n < params.MinHistory() {
		return ActionHold
	}

	maShort := mean(closes[n-params.MAShort:])
	maLong := mean(closes[n-params.MALong:])

	ref := closes[n-params.MomentumDays]
	if ref == 0 {
		return ActionHold
	}
	momentum := (closes[n-1] - ref) / ref

	switch {
	case maShort > maLong && momentum > 0:
		return ActionBuy
	case maShort < maLong && momentum < 0:
		return ActionSell
	default:
		return ActionHold
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
