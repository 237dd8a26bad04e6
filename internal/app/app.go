// Package app wires the trend aggregator, the watchlist analysis job and
// the recommendation pipeline into one long-running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/alert"
	"github.com/newthinker/aitrader/internal/collector"
	"github.com/newthinker/aitrader/internal/config"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/ledger"
	"github.com/newthinker/aitrader/internal/metrics"
	"github.com/newthinker/aitrader/internal/notifier"
	"github.com/newthinker/aitrader/internal/notifier/paper"
	"github.com/newthinker/aitrader/internal/notifier/telegram"
	"github.com/newthinker/aitrader/internal/notifier/webhook"
	"github.com/newthinker/aitrader/internal/pricewatch"
	"github.com/newthinker/aitrader/internal/publish"
	"github.com/newthinker/aitrader/internal/router"
	"github.com/newthinker/aitrader/internal/scheduler"
	"github.com/newthinker/aitrader/internal/series"
	"github.com/newthinker/aitrader/internal/storage/archive"
	"github.com/newthinker/aitrader/internal/storage/signal"
	"github.com/newthinker/aitrader/internal/strategy"
	"github.com/newthinker/aitrader/internal/strategy/peak_trade"
	"github.com/newthinker/aitrader/internal/strategy/vwma_cross"
	"github.com/newthinker/aitrader/internal/strategy/wma_alignment"
	"github.com/newthinker/aitrader/internal/strength"
	"github.com/newthinker/aitrader/internal/trend"
)

const (
	signalStoreSize    = 1000
	archivePrunePeriod = time.Hour
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	provider   collector.Provider
	store      *series.Store
	strategies *strategy.Engine
	notifiers  *notifier.Registry
	router     *router.Router
	signals    signal.Store
	ledger     ledger.Ledger
	paper      *paper.Paper
	board      *trend.Board
	aggregator *trend.Aggregator
	scheduler  *scheduler.Scheduler
	metrics    *metrics.Registry
	prices     *pricewatch.Tracker
	strength   *strength.Analyzer
	archive    *publish.Archive
	alerts     *alert.Evaluator
	feed       collector.TickerFeed
	closers    []io.Closer

	mu        sync.RWMutex
	watchlist []config.WatchlistItem
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds every component named by cfg. The provider supplies candles,
// tickers and trades for all jobs.
func New(ctx context.Context, cfg *config.Config, provider collector.Provider, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		provider:   provider,
		store:      series.NewStore(provider, logger.Named("series")),
		strategies: strategy.NewEngine(logger.Named("strategy")),
		notifiers:  notifier.NewRegistry(),
		signals:    signal.NewMemoryStore(signalStoreSize),
		board:      trend.NewBoard(),
		scheduler:  scheduler.New(logger.Named("scheduler")),
		metrics:    metrics.NewRegistry(),
		prices:     pricewatch.NewTracker(cfg.PriceWatch.Depth, logger.Named("pricewatch")),
		strength:   strength.NewAnalyzer(provider),
		watchlist:  slices.Clone(cfg.Watchlist),
	}

	if err := a.registerStrategies(); err != nil {
		return nil, err
	}

	l, err := ledger.Open(ctx, ledger.Config{Driver: cfg.Ledger.Driver, DSN: cfg.Ledger.DSN, Account: cfg.Ledger.Account})
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	a.ledger = l
	a.closers = append(a.closers, l)

	if err := a.registerNotifiers(ctx); err != nil {
		a.Close()
		return nil, err
	}

	routerCfg, err := cfg.Router.Router()
	if err != nil {
		a.Close()
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	a.router = router.New(routerCfg, a.notifiers, logger.Named("router"))
	a.router.SetSignalStore(a.signals)
	a.router.SetObserver(a.metrics)

	a.aggregator = trend.NewAggregator(cfg.Trend.Aggregator(), a.store, a.board, logger.Named("trend"))
	a.aggregator.SetObserver(a.metrics)
	if err := a.registerSinks(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.metrics.SetWatchlistSize(len(a.watchlist))
	return a, nil
}

// builtinStrategies lists the strategy names NewStrategy can build.
var builtinStrategies = []string{"vwma_cross", "peak_trade", "wma_alignment"}

func (a *App) registerStrategies() error {
	for _, name := range builtinStrategies {
		if sc, configured := a.cfg.Strategies[name]; configured && !sc.Enabled {
			continue
		}
		s, err := a.NewStrategy(name, nil)
		if err != nil {
			return err
		}
		if err := a.strategies.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// NewStrategy builds a fresh, initialised instance of a builtin strategy.
// Params override the configured parameters key by key.
func (a *App) NewStrategy(name string, params map[string]any) (strategy.Strategy, error) {
	var s strategy.Strategy
	switch name {
	case "vwma_cross":
		s = vwma_cross.New(a.cfg.Trend.ShortWindow, a.cfg.Trend.LongWindow)
	case "peak_trade":
		s = peak_trade.New(a.cfg.Trend.LongWindow)
	case "wma_alignment":
		s = wma_alignment.New(120)
	default:
		return nil, core.Errorf(core.ErrNotFound, "strategy %q", name)
	}

	merged := make(map[string]any)
	maps.Copy(merged, a.cfg.Strategies[name].Params)
	maps.Copy(merged, params)
	if err := s.Init(strategy.Config{Enabled: true, Params: merged}); err != nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "strategy %s: %w", name, err)
	}
	return s, nil
}

func (a *App) registerNotifiers(ctx context.Context) error {
	for name, nc := range a.cfg.Notifiers {
		if !nc.Enabled {
			continue
		}

		var (
			n   notifier.Notifier
			err error
		)
		switch name {
		case "telegram":
			n, err = telegram.New(nc.BotToken, nc.ChatID, telegram.WithAPIBase(nc.APIBase))
		case "webhook":
			n, err = webhook.New(nc.URL, nc.Headers)
		case "paper":
			account := nc.Account
			if account == "" {
				account = a.cfg.Ledger.Account
			}
			a.paper = paper.New(a.ledger, account, a.logger.Named("paper"))
			n = a.paper
		default:
			return core.Errorf(core.ErrConfigInvalid, "unknown notifier %q", name)
		}

		if err != nil {
			return core.WrapError(core.ErrConfigInvalid, err)
		}
		if err := a.notifiers.Register(n); err != nil {
			return err
		}
	}

	if a.paper != nil && a.cfg.Ledger.InitialDeposit != "" {
		return a.fundPaper(ctx)
	}
	return nil
}

// fundPaper deposits the initial quote balance into an account that has
// never been funded.
func (a *App) fundPaper(ctx context.Context) error {
	amount, err := decimal.NewFromString(a.cfg.Ledger.InitialDeposit)
	if err != nil {
		return core.Errorf(core.ErrConfigInvalid, "ledger.initial_deposit: %w", err)
	}
	entries, err := a.ledger.Entries(ctx, a.paper.Account(), 1)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	a.logger.Info("funding paper account",
		zap.String("account", a.paper.Account()),
		zap.String("asset", a.cfg.Exchange.Quote),
		zap.String("amount", amount.String()),
	)
	return a.paper.Fund(ctx, a.cfg.Exchange.Quote, amount)
}

func (a *App) registerSinks(ctx context.Context) error {
	rc := a.cfg.Publish.Redis
	if rc.Enabled {
		r, err := publish.NewRedis(ctx, publish.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Key:      rc.Key,
			Channel:  rc.Channel,
			TTL:      rc.TTL,
		})
		if err != nil {
			return fmt.Errorf("connecting redis: %w", err)
		}
		a.aggregator.AddSink(r)
		a.closers = append(a.closers, r)
	}

	ac := a.cfg.Publish.Archive
	if ac.Enabled {
		var store archive.Storage
		var err error
		switch ac.Type {
		case "s3":
			store, err = archive.NewS3(archive.S3Config{
				Bucket:    ac.S3.Bucket,
				Endpoint:  ac.S3.Endpoint,
				Region:    ac.S3.Region,
				AccessKey: ac.S3.AccessKey,
				SecretKey: ac.S3.SecretKey,
				Prefix:    ac.S3.Prefix,
			})
		default:
			store, err = archive.NewLocalFS(ac.Path)
		}
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		a.archive = publish.NewArchive(store)
		a.aggregator.AddSink(a.archive)
	}

	if a.cfg.Alerts.Enabled {
		var targets []alert.Notifier
		for _, t := range a.notifiers.Texters() {
			targets = append(targets, t)
		}
		evaluator, err := alert.NewEvaluator(a.cfg.Alerts.Rules, targets, a.logger.Named("alert"))
		if err != nil {
			return err
		}
		if a.cfg.Alerts.Cooldown > 0 {
			evaluator.SetCooldown(a.cfg.Alerts.Cooldown)
		}
		evaluator.SetObserver(a.metrics)
		a.alerts = evaluator
		a.aggregator.AddSink(evaluator)
	}
	return nil
}

// SetTickerFeed makes the price watch consume a live feed instead of
// polling.
func (a *App) SetTickerFeed(feed collector.TickerFeed) {
	a.feed = feed
}

// Start registers the periodic jobs and returns once they are dispatching.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	if err := a.schedule(ctx); err != nil {
		a.Stop()
		return err
	}

	a.router.StartCleanupRoutine(ctx, time.Hour)

	a.scheduler.Start(ctx)
	a.logger.Info("aitrader started",
		zap.Strings("jobs", a.scheduler.Jobs()),
		zap.Int("watchlist_count", len(a.Watchlist())),
		zap.Int("trend_pairs", len(a.cfg.Trend.Instruments)*len(a.cfg.Trend.Timeframes)),
	)
	return nil
}

func (a *App) schedule(ctx context.Context) error {
	t := a.cfg.Trend
	if t.Enabled {
		err := a.scheduler.Every("trend", scheduler.Config{Period: t.Period, Jitter: t.Jitter, RunOnStart: t.RunOnStart},
			func(ctx context.Context) {
				if _, err := a.aggregator.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Warn("trend cycle aborted", zap.Error(err))
				}
			})
		if err != nil {
			return err
		}
	}

	s := a.cfg.Signals
	if s.Enabled {
		err := a.scheduler.Every("signals", scheduler.Config{Period: s.Period, Jitter: s.Jitter, RunOnStart: s.RunOnStart},
			a.RunSignals)
		if err != nil {
			return err
		}
	}

	if keep := a.cfg.Publish.Archive.Retention; a.archive != nil && keep > 0 {
		err := a.scheduler.Every("archive-prune", scheduler.Config{Period: archivePrunePeriod, RunOnStart: true},
			func(ctx context.Context) {
				n, err := a.archive.Prune(ctx, time.Now().Add(-keep))
				if err != nil {
					a.logger.Warn("archive prune failed", zap.Error(err))
					return
				}
				if n > 0 {
					a.logger.Info("pruned archived snapshots", zap.Int("count", n), zap.Duration("retention", keep))
				}
			})
		if err != nil {
			return err
		}
	}

	pw := a.cfg.PriceWatch
	if !pw.Enabled {
		return nil
	}
	if pw.Stream && a.feed != nil {
		feed, err := a.feed.Tickers(ctx, a.streamCodes())
		if err != nil {
			return fmt.Errorf("subscribing tickers: %w", err)
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.prices.Run(ctx, feed)
		}()
		return nil
	}
	return a.scheduler.Every("pricewatch", scheduler.Config{Period: pw.Period, RunOnStart: true},
		func(ctx context.Context) {
			if err := a.prices.Poll(ctx, a.provider, a.cfg.Exchange.Quote); err != nil {
				a.logger.Warn("price poll failed", zap.Error(err))
			}
		})
}

// streamCodes lists every market the app tracks.
func (a *App) streamCodes() []string {
	codes := slices.Clone(a.cfg.Trend.Instruments)
	for _, item := range a.Watchlist() {
		codes = append(codes, item.Symbol)
	}
	slices.Sort(codes)
	return slices.Compact(codes)
}

// Stop stops the jobs and waits for them to return.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.running = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.scheduler.Stop()
	a.wg.Wait()
	a.logger.Info("aitrader stopped")
}

// Close releases the ledger and publisher connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunSignals analyzes every watchlist item once and routes the resulting
// recommendations.
func (a *App) RunSignals(ctx context.Context) {
	items := a.Watchlist()
	if len(items) == 0 {
		a.logger.Debug("no symbols in watchlist")
		return
	}

	a.logger.Debug("starting analysis cycle", zap.Int("symbols", len(items)))
	for _, item := range items {
		timeframes := item.Timeframes
		if len(timeframes) == 0 {
			timeframes = a.cfg.Trend.Timeframes
		}
		for _, tf := range timeframes {
			if ctx.Err() != nil {
				return
			}
			if _, err := a.Analyze(ctx, item.Symbol, tf, item.Strategies); err != nil {
				a.logger.Warn("analysis failed",
					zap.String("instrument", item.Symbol),
					zap.String("timeframe", string(tf)),
					zap.Error(err),
				)
			}
		}
	}
}

// Analyze fetches a fresh series for instrument, runs the named strategies
// (all when names is empty) and routes every signal. It never touches the
// trend snapshot.
func (a *App) Analyze(ctx context.Context, instrument string, tf core.Timeframe, names []string) ([]core.Signal, error) {
	strategies, err := a.strategies.Select(names...)
	if err != nil {
		return nil, err
	}

	count := a.cfg.Signals.Count
	for _, s := range strategies {
		count = max(count, s.RequiredData().History)
	}

	ser, err := a.store.Fetch(ctx, instrument, tf, count)
	if err != nil {
		return nil, err
	}

	analysisCtx := strategy.AnalysisContext{Series: ser, Now: time.Now()}
	holding, err := a.Positions().Holding(ctx, instrument)
	if err != nil {
		a.logger.Debug("holding unavailable", zap.String("instrument", instrument), zap.Error(err))
	} else {
		analysisCtx.Holding = holding
	}

	signals, err := a.strategies.Run(ctx, analysisCtx, strategies)
	if err != nil {
		return signals, err
	}

	for _, sig := range signals {
		a.metrics.RecordSignal(sig.Strategy, sig.Action)
		if _, err := a.router.Route(ctx, sig); err != nil {
			a.logger.Error("failed to route signal",
				zap.String("instrument", instrument),
				zap.String("strategy", sig.Strategy),
				zap.Error(err),
			)
		}
	}

	if len(signals) > 0 {
		a.logger.Info("signals generated",
			zap.String("instrument", instrument),
			zap.String("timeframe", string(tf)),
			zap.Int("count", len(signals)),
		)
	}
	return signals, nil
}

// Trend computes one pair on demand without publishing it.
func (a *App) Trend(ctx context.Context, instrument string, tf core.Timeframe) (trend.Summary, error) {
	return a.aggregator.Compute(ctx, instrument, tf)
}

// RunTrendCycle runs one aggregation cycle immediately.
func (a *App) RunTrendCycle(ctx context.Context) (*trend.Snapshot, error) {
	return a.aggregator.RunCycle(ctx)
}

// Positions answers holding queries for the paper account.
func (a *App) Positions() ledger.Positions {
	return ledger.Positions{Ledger: a.ledger, Account: a.Account()}
}

// Account returns the paper ledger account.
func (a *App) Account() string {
	if a.paper != nil {
		return a.paper.Account()
	}
	if a.cfg.Ledger.Account != "" {
		return a.cfg.Ledger.Account
	}
	return paper.DefaultAccount
}

// Watchlist returns a copy of the monitored items.
func (a *App) Watchlist() []config.WatchlistItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.watchlist)
}

// AddToWatchlist adds or replaces the item for item.Symbol.
func (a *App) AddToWatchlist(item config.WatchlistItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := slices.IndexFunc(a.watchlist, func(w config.WatchlistItem) bool { return w.Symbol == item.Symbol }); i >= 0 {
		a.watchlist[i] = item
	} else {
		a.watchlist = append(a.watchlist, item)
	}
	a.metrics.SetWatchlistSize(len(a.watchlist))
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (a *App) RemoveFromWatchlist(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.watchlist)
	a.watchlist = slices.DeleteFunc(a.watchlist, func(w config.WatchlistItem) bool { return w.Symbol == symbol })
	a.metrics.SetWatchlistSize(len(a.watchlist))
	return len(a.watchlist) < n
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	running := a.running
	watchlist := len(a.watchlist)
	a.mu.RUnlock()

	stats := map[string]any{
		"running":    running,
		"watchlist":  watchlist,
		"strategies": a.strategies.Names(),
		"notifiers":  a.notifiers.Names(),
		"jobs":       a.scheduler.Jobs(),
		"router":     a.router.GetStats(),
	}
	if snap := a.board.Current(); snap != nil {
		stats["trend_cycle"] = snap.Cycle
		stats["trend_pairs"] = snap.Pairs()
	}
	return stats
}

// Accessors for the command layer.

func (a *App) Board() *trend.Board {
	return a.board
}

func (a *App) Signals() signal.Store {
	return a.signals
}

func (a *App) Ledger() ledger.Ledger {
	return a.ledger
}

func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

func (a *App) Prices() *pricewatch.Tracker {
	return a.prices
}

func (a *App) Strength() *strength.Analyzer {
	return a.strength
}

func (a *App) Strategies() *strategy.Engine {
	return a.strategies
}

func (a *App) Archive() *publish.Archive {
	return a.archive
}

func (a *App) Alerts() *alert.Evaluator {
	return a.alerts
}

func (a *App) Store() *series.Store {
	return a.store
}

func (a *App) Provider() collector.Provider {
	return a.provider
}

