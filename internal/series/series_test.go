package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/aitrader/internal/core"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

type fakeProvider struct {
	samples []core.Sample
	err     error
	calls   int
}

func (f *fakeProvider) Candles(ctx context.Context, market string, tf core.Timeframe, count int) ([]core.Sample, error) {
	f.calls++
	return f.samples, f.err
}

func TestNew_SortsAndDedupes(t *testing.T) {
	s := New("KRW-BTC", core.Timeframe1m, []core.Sample{
		{Time: at(2), Price: 3},
		{Time: at(0), Price: 1},
		{Time: at(1), Price: 2},
		{Time: at(2), Price: 30},
	})

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{1, 2, 30}, s.Prices())
	for i := 1; i < s.Len(); i++ {
		assert.True(t, s.Samples[i].Time.After(s.Samples[i-1].Time))
	}
}

func TestSeries_ClosedAndTail(t *testing.T) {
	s := New("KRW-BTC", core.Timeframe1m, []core.Sample{
		{Time: at(0), Price: 1}, {Time: at(1), Price: 2}, {Time: at(2), Price: 3},
	})

	closed := s.Closed()
	assert.Equal(t, []float64{1, 2}, closed.Prices())
	assert.Equal(t, 3, s.Len(), "original must be untouched")

	assert.Equal(t, []float64{2, 3}, s.Tail(2).Prices())
	assert.Equal(t, []float64{1, 2, 3}, s.Tail(10).Prices())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 3.0, last.Price)

	_, ok = New("X", core.Timeframe1m, nil).Last()
	assert.False(t, ok)
}

func TestStore_FetchUnsupportedTimeframe(t *testing.T) {
	p := &fakeProvider{}
	store := NewStore(p, nil)

	_, err := store.Fetch(context.Background(), "KRW-BTC", core.Timeframe("2h"), 10)
	assert.True(t, errors.Is(err, core.ErrUnsupportedTimeframe))
	assert.Equal(t, 0, p.calls, "provider must not be called")
}

func TestStore_FetchProviderError(t *testing.T) {
	store := NewStore(&fakeProvider{err: errors.New("status 500")}, nil)

	_, err := store.Fetch(context.Background(), "KRW-BTC", core.Timeframe1h, 10)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
}

func TestStore_FetchEmpty(t *testing.T) {
	store := NewStore(&fakeProvider{}, nil)

	_, err := store.Fetch(context.Background(), "KRW-BTC", core.Timeframe1h, 10)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
}

func TestStore_FetchSortsNewestFirstInput(t *testing.T) {
	p := &fakeProvider{samples: []core.Sample{
		{Time: at(20), Price: 3, Volume: 1},
		{Time: at(10), Price: 2, Volume: 1},
		{Time: at(0), Price: 1, Volume: 1},
	}}
	store := NewStore(p, nil)

	s, err := store.Fetch(context.Background(), "KRW-ETH", core.Timeframe10m, 3)
	require.NoError(t, err)
	assert.Equal(t, "KRW-ETH", s.Instrument)
	assert.Equal(t, core.Timeframe10m, s.Timeframe)
	assert.Equal(t, []float64{1, 2, 3}, s.Prices())

	_, err = store.Fetch(context.Background(), "KRW-ETH", core.Timeframe10m, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "every fetch goes to the provider")
}
