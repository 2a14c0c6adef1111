// Package pricefeed maintains the current tradable price per instrument and
// advances it on a fixed cadence with a bounded random walk. At the session
// boundary the pre-tick price becomes the day's reference close.
package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/history"
	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/session"
)

// Quote is a consistent point-in-time snapshot of one instrument's price.
type Quote struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Industry      string          `json:"industry"`
	Price         decimal.Decimal `json:"price"`
	PrevPrice     decimal.Decimal `json:"prev_price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	At            time.Time       `json:"at"`
}

// TickResult captures the outcome of one instrument's perturbation within a
// tick. A single instrument's failure never aborts the tick for the rest.
type TickResult struct {
	Code string
	Err  error
}

// Feed owns the instrument price state. The tick loop is the only writer;
// all reads are snapshot-consistent under the feed mutex.
type Feed struct {
	mu          sync.RWMutex
	instruments map[string]*model.Instrument
	boundPct    float64
	lastTick    time.Time

	rng      *rand.Rand // used by the tick loop only
	recorder *history.Recorder
	onTick   func(now time.Time, results []TickResult)
}

// OnTick registers a hook invoked after every tick cycle, e.g. for metrics
// and health reporting. Must be set before Run starts.
func (f *Feed) OnTick(fn func(now time.Time, results []TickResult)) {
	f.onTick = fn
}

// New creates a feed over the given instruments. recorder may be nil; when
// set, every tick appends the new close to the instrument's history window.
func New(instruments []model.Instrument, boundPct float64, recorder *history.Recorder) *Feed {
	m := make(map[string]*model.Instrument, len(instruments))
	for i := range instruments {
		ins := instruments[i]
		if ins.LastUpdate.IsZero() {
			ins.LastUpdate = time.Now()
		}
		m[ins.Code] = &ins
	}
	return &Feed{
		instruments: m,
		boundPct:    boundPct,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		recorder:    recorder,
	}
}

// Tick advances every instrument's price by a uniform perturbation within
// ±boundPct, rounded to 2 decimals. When the session boundary has been
// crossed since the previous tick, each instrument's pre-tick price becomes
// its new previous close first. Returns per-instrument results.
func (f *Feed) Tick(now time.Time) []TickResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	newSession := !f.lastTick.IsZero() && session.CrossedBoundary(f.lastTick, now)
	f.lastTick = now

	results := make([]TickResult, 0, len(f.instruments))
	for code, ins := range f.instruments {
		if newSession {
			ins.PrevPrice = ins.LastPrice
		}

		change := (f.rng.Float64()*2 - 1) * f.boundPct
		next := ins.LastPrice.Mul(decimal.NewFromFloat(1 + change)).Round(2)
		if next.LessThanOrEqual(decimal.Zero) {
			// Tiny prices can round to zero; keep the old price for this cycle.
			results = append(results, TickResult{Code: code, Err: fmt.Errorf("perturbed price %s not positive", next)})
			continue
		}

		ins.LastPrice = next
		ins.LastUpdate = now
		if f.recorder != nil {
			f.recorder.Record(code, next.InexactFloat64())
		}
		results = append(results, TickResult{Code: code})
	}
	return results
}

// Get returns a snapshot for one instrument, or ErrUnknownInstrument.
func (f *Feed) Get(code string) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ins, ok := f.instruments[code]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", model.ErrUnknownInstrument, code)
	}
	return quoteOf(ins), nil
}

// Quotes returns snapshots for every instrument in the feed.
func (f *Feed) Quotes() []Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Quote, 0, len(f.instruments))
	for _, ins := range f.instruments {
		out = append(out, quoteOf(ins))
	}
	return out
}

// Has reports whether the feed knows the instrument code.
func (f *Feed) Has(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.instruments[code]
	return ok
}

// Seed replaces an instrument's last price, e.g. from the reference price
// API at startup. Unknown codes are ignored.
func (f *Feed) Seed(code string, price decimal.Decimal) {
	if price.LessThanOrEqual(decimal.Zero) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ins, ok := f.instruments[code]; ok {
		ins.LastPrice = price.Round(2)
		ins.LastUpdate = time.Now()
	}
}

// Run ticks the feed every interval until ctx is cancelled, pushing fresh
// quotes into quoteCh (non-blocking; slow consumers miss updates rather than
// stalling the feed). quoteCh may be nil.
func (f *Feed) Run(ctx context.Context, interval time.Duration, quoteCh chan<- Quote) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			results := f.Tick(now)
			if f.onTick != nil {
				f.onTick(now, results)
			}
			for _, res := range results {
				if res.Err != nil {
					slog.Warn("price tick skipped", "code", res.Code, "error", res.Err)
				}
			}
			if quoteCh != nil {
				for _, q := range f.Quotes() {
					select {
					case quoteCh <- q:
					default:
					}
				}
			}
		}
	}
}

func quoteOf(ins *model.Instrument) Quote {
	return Quote{
		Code:          ins.Code,
		Name:          ins.Name,
		Industry:      ins.Industry,
		Price:         ins.LastPrice,
		PrevPrice:     ins.PrevPrice,
		ChangePercent: ins.ChangePercent(),
		At:            ins.LastUpdate,
	}
}
