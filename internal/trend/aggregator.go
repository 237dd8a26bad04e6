package trend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/series"
)

// SeriesFetcher supplies fresh series for a pair.
type SeriesFetcher interface {
	Fetch(ctx context.Context, instrument string, tf core.Timeframe, count int) (*series.Series, error)
}

// Sink receives every published snapshot.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap *Snapshot) error
}

// Observer records cycle outcomes, typically as metrics.
type Observer interface {
	ObserveTrendCycle(duration time.Duration, computed, failed int)
	ObserveTrendFailure(instrument string, tf core.Timeframe)
}

// Config controls one aggregation cycle.
type Config struct {
	Instruments []string
	Timeframes  []core.Timeframe
	Count       int
	Params      Params
	// PairDelay is the pause between two pair computations.
	PairDelay time.Duration
	// RetainOnFailure keeps a pair's previous summary when it fails.
	RetainOnFailure bool
}

// Aggregator recomputes every pair and publishes the snapshot to a board.
// RunCycle must not be called concurrently; the scheduler guarantees this.
type Aggregator struct {
	cfg      Config
	fetcher  SeriesFetcher
	board    *Board
	sinks    []Sink
	observer Observer
	logger   *zap.Logger

	cycle uint64
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAggregator creates an aggregator publishing to board.
func NewAggregator(cfg Config, fetcher SeriesFetcher, board *Board, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:     cfg,
		fetcher: fetcher,
		board:   board,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// AddSink registers a snapshot sink.
func (a *Aggregator) AddSink(s Sink) {
	a.sinks = append(a.sinks, s)
}

// SetObserver registers a cycle observer.
func (a *Aggregator) SetObserver(o Observer) {
	a.observer = o
}

// Board returns the board the aggregator publishes to.
func (a *Aggregator) Board() *Board {
	return a.board
}

// RunCycle computes every pair sequentially and publishes the complete
// snapshot. A cancelled context abandons the cycle without publishing.
func (a *Aggregator) RunCycle(ctx context.Context) (*Snapshot, error) {
	started := a.now()
	prev := a.board.Current()

	snap := &Snapshot{
		Cycle:    a.cycle + 1,
		Trends:   make(map[string]map[core.Timeframe]Summary, len(a.cfg.Instruments)),
		Failures: []Failure{},
	}

	computed := 0
	first := true
	for _, instrument := range a.cfg.Instruments {
		for _, tf := range a.cfg.Timeframes {
			if !first {
				if err := a.sleep(ctx, a.cfg.PairDelay); err != nil {
					return nil, err
				}
			}
			first = false

			sum, err := a.computePair(ctx, instrument, tf)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				f := Failure{Instrument: instrument, Timeframe: tf, Error: err.Error(), At: a.now()}
				if old, ok := prev.Get(instrument, tf); ok && a.cfg.RetainOnFailure {
					snap.put(old)
					f.Retained = true
				}
				snap.Failures = append(snap.Failures, f)

				a.logger.Warn("trend computation skipped",
					zap.String("instrument", instrument),
					zap.String("timeframe", string(tf)),
					zap.Bool("retained", f.Retained),
					zap.Error(err),
				)
				if a.observer != nil {
					a.observer.ObserveTrendFailure(instrument, tf)
				}
				continue
			}

			snap.put(sum)
			computed++
		}
	}

	snap.GeneratedAt = a.now()
	a.cycle = snap.Cycle
	a.board.Publish(snap)

	duration := snap.GeneratedAt.Sub(started)
	a.logger.Info("trend cycle completed",
		zap.Uint64("cycle", snap.Cycle),
		zap.Int("computed", computed),
		zap.Int("failed", len(snap.Failures)),
		zap.Duration("duration", duration),
	)
	if a.observer != nil {
		a.observer.ObserveTrendCycle(duration, computed, len(snap.Failures))
	}

	for _, sink := range a.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			a.logger.Warn("snapshot sink failed",
				zap.String("sink", sink.Name()),
				zap.Error(err),
			)
		}
	}

	return snap, nil
}

// Run is the scheduler entry point.
func (a *Aggregator) Run(ctx context.Context) {
	if _, err := a.RunCycle(ctx); err != nil {
		a.logger.Info("trend cycle abandoned", zap.Error(err))
	}
}

// Compute summarises one pair outside the cycle, for ad hoc requests.
func (a *Aggregator) Compute(ctx context.Context, instrument string, tf core.Timeframe) (Summary, error) {
	return a.computePair(ctx, instrument, tf)
}

func (a *Aggregator) computePair(ctx context.Context, instrument string, tf core.Timeframe) (sum Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.Errorf(core.ErrComputationSkipped, "%s/%s: panic: %v", instrument, tf, r)
		}
	}()

	s, err := a.fetcher.Fetch(ctx, instrument, tf, a.cfg.Count)
	if err != nil {
		return Summary{}, core.WrapError(core.ErrComputationSkipped, err)
	}
	return Summarize(s, a.cfg.Params, a.now()), nil
}

func (s *Snapshot) put(sum Summary) {
	byTF, ok := s.Trends[sum.Instrument]
	if !ok {
		byTF = make(map[core.Timeframe]Summary)
		s.Trends[sum.Instrument] = byTF
	}
	byTF[sum.Timeframe] = sum
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
