package series

import (
	"context"

	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
)

// CandleProvider is the market-data source the store reads from.
type CandleProvider interface {
	Candles(ctx context.Context, market string, tf core.Timeframe, count int) ([]core.Sample, error)
}

// Store fetches fresh series from a provider. It keeps no cache.
type Store struct {
	provider CandleProvider
	logger   *zap.Logger
}

// NewStore creates a store over provider.
func NewStore(provider CandleProvider, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{provider: provider, logger: logger}
}

// Fetch returns up to count samples for instrument, oldest first.
func (s *Store) Fetch(ctx context.Context, instrument string, tf core.Timeframe, count int) (*Series, error) {
	if !tf.Valid() {
		return nil, core.Errorf(core.ErrUnsupportedTimeframe, "%q", tf)
	}
	if count <= 0 {
		return nil, core.Errorf(core.ErrDataUnavailable, "count must be positive, got %d", count)
	}

	samples, err := s.provider.Candles(ctx, instrument, tf, count)
	if err != nil {
		return nil, core.Errorf(core.ErrDataUnavailable, "%s/%s: %w", instrument, tf, err)
	}
	if len(samples) == 0 {
		return nil, core.Errorf(core.ErrDataUnavailable, "%s/%s: empty response", instrument, tf)
	}

	ser := New(instrument, tf, samples)
	s.logger.Debug("fetched series",
		zap.String("instrument", instrument),
		zap.String("timeframe", string(tf)),
		zap.Int("samples", ser.Len()),
	)
	return ser, nil
}
