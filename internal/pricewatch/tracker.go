// Package pricewatch keeps a short rolling price history per market.
package pricewatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
)

// DefaultDepth is the number of prices kept per market.
const DefaultDepth = 10

// Point is one observed price.
type Point struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// TickerSource polls every ticker of a quote currency.
type TickerSource interface {
	AllTickers(ctx context.Context, quote string) ([]core.Ticker, error)
}

// Tracker is safe for concurrent use.
type Tracker struct {
	depth  int
	logger *zap.Logger

	mu      sync.RWMutex
	history map[string][]Point
}

// NewTracker creates a tracker keeping depth prices per market.
func NewTracker(depth int, logger *zap.Logger) *Tracker {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{depth: depth, logger: logger, history: make(map[string][]Point)}
}

// Observe records a ticker. Tickers older than the newest point are ignored.
func (t *Tracker) Observe(tk core.Ticker) {
	if tk.Market == "" || tk.Price <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.history[tk.Market]
	if n := len(h); n > 0 && tk.Time.Before(h[n-1].Time) {
		return
	}
	h = append(h, Point{Price: tk.Price, Time: tk.Time})
	if len(h) > t.depth {
		h = append(h[:0:0], h[len(h)-t.depth:]...)
	}
	t.history[tk.Market] = h
}

// History returns the kept prices of market, oldest first.
func (t *Tracker) History(market string) []Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Point(nil), t.history[market]...)
}

// Latest returns the newest price of market.
func (t *Tracker) Latest(market string) (Point, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h := t.history[market]
	if len(h) == 0 {
		return Point{}, false
	}
	return h[len(h)-1], true
}

// Change is the percent change across the kept history.
func (t *Tracker) Change(market string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h := t.history[market]
	if len(h) < 2 {
		return 0, false
	}
	return (h[len(h)-1].Price - h[0].Price) / h[0].Price * 100, true
}

// Markets returns the tracked markets in order.
func (t *Tracker) Markets() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.history))
	for m := range t.history {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Run consumes a live ticker feed until it closes or ctx ends.
func (t *Tracker) Run(ctx context.Context, feed <-chan core.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case tk, ok := <-feed:
			if !ok {
				return
			}
			t.Observe(tk)
		}
	}
}

// Poll fetches every ticker of quote once and records them.
func (t *Tracker) Poll(ctx context.Context, src TickerSource, quote string) error {
	tickers, err := src.AllTickers(ctx, quote)
	if err != nil {
		return core.Errorf(core.ErrDataUnavailable, "tickers %s: %w", quote, err)
	}
	for _, tk := range tickers {
		t.Observe(tk)
	}
	t.logger.Debug("prices polled", zap.String("quote", quote), zap.Int("markets", len(tickers)))
	return nil
}
