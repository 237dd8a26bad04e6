package strategy

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
)

// Engine holds the registered strategies and runs them over one analysis
// context.
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		strategies: make(map[string]Strategy),
		logger:     logger,
	}
}

// Register adds s under its name. Names must be unique.
func (e *Engine) Register(s Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.strategies[s.Name()]; dup {
		return core.Errorf(core.ErrConfigInvalid, "strategy %s registered twice", s.Name())
	}
	e.strategies[s.Name()] = s
	return nil
}

func (e *Engine) Get(name string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[name]
	return s, ok
}

// Names returns the registered names sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.strategies))
}

// Select resolves names to strategies, every strategy in name order when
// names is empty. Unknown names are skipped; ErrNotFound is returned only
// when none of them is registered.
func (e *Engine) Select(names ...string) ([]Strategy, error) {
	if len(names) == 0 {
		names = e.Names()
	}
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		if s, ok := e.Get(name); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(names) > 0 {
		return nil, core.Errorf(core.ErrNotFound, "no strategy among %v", names)
	}
	return out, nil
}

// Analyze runs the named strategies, all of them when names is empty.
func (e *Engine) Analyze(ctx context.Context, actx AnalysisContext, names ...string) ([]core.Signal, error) {
	strategies, err := e.Select(names...)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, actx, strategies)
}

// Run calls each strategy in turn and stamps the signals with the strategy
// name, an ID, the series pair and the analysis time where they are unset.
// A failing strategy is logged and skipped; cancellation stops the run.
func (e *Engine) Run(ctx context.Context, actx AnalysisContext, strategies []Strategy) ([]core.Signal, error) {
	var out []core.Signal
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		signals, err := s.Analyze(actx)
		if err != nil {
			e.logger.Warn("strategy analysis failed",
				zap.String("strategy", s.Name()),
				zap.String("instrument", actx.Symbol()),
				zap.Error(err),
			)
			continue
		}
		for i := range signals {
			stamp(&signals[i], s.Name(), actx)
		}
		out = append(out, signals...)
	}
	return out, nil
}

func stamp(sig *core.Signal, strategy string, actx AnalysisContext) {
	sig.Strategy = strategy
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.GeneratedAt.IsZero() {
		sig.GeneratedAt = actx.Now
	}
	if actx.Series == nil {
		return
	}
	if sig.Symbol == "" {
		sig.Symbol = actx.Series.Instrument
	}
	if sig.Timeframe == "" {
		sig.Timeframe = actx.Series.Timeframe
	}
}
