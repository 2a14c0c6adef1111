// Package history records per-instrument closing prices as the price feed
// ticks, bounded to a fixed window. Strategy signals are computed over this
// recorded series, so moving averages reflect prices that actually occurred
// rather than synthetic noise.
package history

import "sync"

// Recorder keeps a bounded ring of recent closes per instrument.
// The feed loop is the only writer; scheduler and API read snapshots.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*ring
}

type ring struct {
	buf  []float64
	head int // next write slot
	size int
}

// NewRecorder creates a Recorder holding up to capacity closes per instrument.
// capacity must cover the largest strategy window in use.
func NewRecorder(capacity int) *Recorder {
	if capacity < 2 {
		capacity = 2
	}
	return &Recorder{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Record appends a close for code, evicting the oldest when the window is full.
func (r *Recorder) Record(code string, close float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rg, ok := r.rings[code]
	if !ok {
		rg = &ring{buf: make([]float64, r.capacity)}
		r.rings[code] = rg
	}
	rg.buf[rg.head] = close
	rg.head = (rg.head + 1) % len(rg.buf)
	if rg.size < len(rg.buf) {
		rg.size++
	}
}

// Closes returns a snapshot of the recorded closes for code, oldest first.
// Returns nil when nothing has been recorded yet.
func (r *Recorder) Closes(code string) []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rg, ok := r.rings[code]
	if !ok || rg.size == 0 {
		return nil
	}

	out := make([]float64, rg.size)
	start := (rg.head - rg.size + len(rg.buf)) % len(rg.buf)
	for i := 0; i < rg.size; i++ {
		out[i] = rg.buf[(start+i)%len(rg.buf)]
	}
	return out
}

// Len returns the number of closes recorded for code.
func (r *Recorder) Len(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rg, ok := r.rings[code]
	if !ok {
		return 0
	}
	return rg.size
}
