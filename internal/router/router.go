// Package router filters recommendations, stores them and fans them out to
// notifiers.
package router

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/notifier"
	"github.com/newthinker/aitrader/internal/storage/signal"
)

// Config holds router configuration
type Config struct {
	CooldownDuration time.Duration `mapstructure:"cooldown_duration"`
	EnabledActions   []core.Action `mapstructure:"enabled_actions"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		CooldownDuration: 1 * time.Hour,
		EnabledActions:   []core.Action{core.ActionBuy, core.ActionSell},
	}
}

// Observer is told about every routing decision.
type Observer interface {
	ObserveSignal(strategy string, action core.Action, routed bool)
}

// Router routes signals to notifiers with filtering
type Router struct {
	cfg         Config
	registry    *notifier.Registry
	logger      *zap.Logger
	signalStore signal.Store
	observer    Observer
	now         func() time.Time

	mu        sync.RWMutex
	cooldowns map[cooldownKey]time.Time // last routed
}

type cooldownKey struct {
	instrument string
	timeframe  core.Timeframe
	action     core.Action
}

// New creates a new signal router
func New(cfg Config, registry *notifier.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		registry:  registry,
		logger:    logger,
		now:       time.Now,
		cooldowns: make(map[cooldownKey]time.Time),
	}
}

// SetSignalStore sets the signal persistence store
func (r *Router) SetSignalStore(store signal.Store) {
	r.signalStore = store
}

// SetObserver registers a routing observer.
func (r *Router) SetObserver(o Observer) {
	r.observer = o
}

// Route stores and delivers a signal when it passes the filters. It reports
// whether the signal was routed. Notifier failures are logged, not returned.
func (r *Router) Route(ctx context.Context, sig core.Signal) (bool, error) {
	if !r.claim(sig) {
		r.logger.Debug("signal filtered out",
			zap.String("instrument", sig.Symbol),
			zap.String("timeframe", string(sig.Timeframe)),
			zap.String("action", string(sig.Action)),
		)
		r.observe(sig, false)
		return false, nil
	}

	if r.signalStore != nil {
		saved, err := r.signalStore.Save(ctx, sig)
		if err != nil {
			r.logger.Error("failed to persist signal", zap.Error(err))
		} else {
			sig = saved
		}
	}

	var errs map[string]error
	if r.registry != nil {
		errs = r.registry.NotifyAll(ctx, sig)
		for name, err := range errs {
			r.logger.Error("notifier failed",
				zap.String("notifier", name),
				zap.String("instrument", sig.Symbol),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("signal routed",
		zap.String("id", sig.ID),
		zap.String("instrument", sig.Symbol),
		zap.String("action", string(sig.Action)),
		zap.String("reason", sig.Reason),
		zap.Int("errors", len(errs)),
	)
	r.observe(sig, true)
	return true, nil
}

// RouteBatch routes each signal and returns how many passed the filters.
func (r *Router) RouteBatch(ctx context.Context, signals []core.Signal) int {
	routed := 0
	for _, sig := range signals {
		if ok, _ := r.Route(ctx, sig); ok {
			routed++
		}
	}
	return routed
}

// claim checks the filters and, on success, starts the cooldown atomically so
// concurrent duplicates cannot both pass.
func (r *Router) claim(sig core.Signal) bool {
	if !r.actionEnabled(sig.Action) {
		return false
	}

	key := cooldownKey{sig.Symbol, sig.Timeframe, sig.Action}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.cooldowns[key]; ok && now.Sub(last) < r.cfg.CooldownDuration {
		return false
	}
	r.cooldowns[key] = now
	return true
}

func (r *Router) actionEnabled(a core.Action) bool {
	return len(r.cfg.EnabledActions) == 0 || slices.Contains(r.cfg.EnabledActions, a)
}

func (r *Router) observe(sig core.Signal, routed bool) {
	if r.observer != nil {
		r.observer.ObserveSignal(sig.Strategy, sig.Action, routed)
	}
}

// ClearCooldown removes the cooldowns of an instrument.
func (r *Router) ClearCooldown(instrument string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cooldowns {
		if key.instrument == instrument {
			delete(r.cooldowns, key)
		}
	}
}

// CleanupExpiredCooldowns drops cooldowns that no longer block anything.
func (r *Router) CleanupExpiredCooldowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	before := len(r.cooldowns)
	maps.DeleteFunc(r.cooldowns, func(_ cooldownKey, last time.Time) bool {
		return now.Sub(last) >= r.cfg.CooldownDuration
	})
	return before - len(r.cooldowns)
}

// StartCleanupRoutine periodically drops expired cooldowns until ctx ends.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := r.CleanupExpiredCooldowns(); removed > 0 {
					r.logger.Debug("cleaned up expired cooldowns", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]any{
		"cooldowns_active": len(r.cooldowns),
		"cooldown_seconds": r.cfg.CooldownDuration.Seconds(),
		"enabled_actions":  r.cfg.EnabledActions,
	}
}
