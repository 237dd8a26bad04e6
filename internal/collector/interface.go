package collector

import (
	"context"

	"github.com/newthinker/aitrader/internal/core"
)

// Provider defines the market-data source the engine reads from.
type Provider interface {
	// Name returns the provider identifier (e.g., "upbit")
	Name() string

	// Candles fetches up to count candles for market in any order.
	Candles(ctx context.Context, market string, tf core.Timeframe, count int) ([]core.Sample, error)

	// Ticker fetches live tickers for the given markets.
	Ticker(ctx context.Context, markets ...string) ([]core.Ticker, error)

	// AllTickers fetches live tickers for every market in a quote currency.
	AllTickers(ctx context.Context, quote string) ([]core.Ticker, error)

	// Trades fetches the most recent trades, newest first.
	Trades(ctx context.Context, market string, count int) ([]core.Trade, error)
}

// TickerFeed streams live tickers.
type TickerFeed interface {
	Tickers(ctx context.Context, codes []string) (<-chan core.Ticker, error)
}
