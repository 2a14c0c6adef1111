package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/XavierD3728/stockquant/internal/model"
)

func params(maShort, maLong, momentumDays int) model.StrategyParams {
	return model.StrategyParams{MAShort: maShort, MALong: maLong, MomentumDays: momentumDays, LotSize: 100}
}

func rising(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	return xs
}

func falling(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(n - i)
	}
	return xs
}

func flat(n int, v float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = v
	}
	return xs
}

func TestHoldOnShortHistory(t *testing.T) {
	cases := []model.StrategyParams{
		params(5, 20, 10),
		params(5, 10, 20),
		params(2, 3, 3),
		params(1, 60, 30),
	}
	for _, p := range cases {
		for n := 0; n < p.MinHistory(); n++ {
			assert.Equal(t, ActionHold, Evaluate(rising(n), p),
				"params %+v with %d closes must HOLD", p, n)
		}
	}
}

func TestBuyOnGoldenCrossWithMomentum(t *testing.T) {
	assert.Equal(t, ActionBuy, Evaluate(rising(30), params(5, 20, 10)))
}

func TestSellOnDeathCrossWithMomentum(t *testing.T) {
	assert.Equal(t, ActionSell, Evaluate(falling(30), params(5, 20, 10)))
}

func TestTiesResolveToHold(t *testing.T) {
	// Equal MAs and zero momentum: no trade on ambiguity.
	assert.Equal(t, ActionHold, Evaluate(flat(30, 50.0), params(5, 20, 10)))
}

func TestCrossWithoutMomentumHolds(t *testing.T) {
	// Short MA above long MA, but the last close equals the momentum
	// reference, so momentum is zero.
	xs := rising(30)
	xs[29] = xs[29-10]
	p := params(5, 20, 10)

	// Verify the MA side of the condition still points up.
	assert.NotEqual(t, ActionSell, Evaluate(xs, p))
	assert.Equal(t, ActionHold, Evaluate(xs, p))
}

func TestZeroReferenceHolds(t *testing.T) {
	xs := flat(30, 0)
	xs[29] = 10
	assert.Equal(t, ActionHold, Evaluate(xs, params(5, 20, 10)))
}

func TestEvaluateIsPure(t *testing.T) {
	xs := rising(30)
	p := params(5, 20, 10)

	first := Evaluate(xs, p)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(xs, p))
	}
	assert.Equal(t, rising(30), xs, "input slice must not be mutated")
}
