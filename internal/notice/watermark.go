package notice

import (
	"sync"
	"time"
)

// Watermark is the instant up to which notices have been processed.
type Watermark struct {
	mu        sync.Mutex
	last      time.Time
	minWindow time.Duration
}

// NewWatermark returns an unset watermark. minWindow is the lookback used
// when the clock is observed going backwards.
func NewWatermark(minWindow time.Duration) *Watermark {
	return &Watermark{minWindow: minWindow}
}

// Since returns the lower bound of the next query. On first use it records
// now and returns ok=false; the caller skips that cycle.
func (w *Watermark) Since(now time.Time) (since time.Time, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.last.IsZero() {
		w.last = now.UTC()
		return time.Time{}, false
	}
	if now.Sub(w.last) <= 0 {
		return now.Add(-w.minWindow).UTC(), true
	}
	return w.last, true
}

// Advance moves the watermark forward to now. It never moves backwards.
func (w *Watermark) Advance(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.After(w.last) {
		w.last = now.UTC()
	}
}

// Reset sets the watermark to now unconditionally.
func (w *Watermark) Reset(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = now.UTC()
}

func (w *Watermark) Last() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
