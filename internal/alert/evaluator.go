package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/trend"
)

// Notifier delivers alert text.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// Alert is one fired rule for one pair.
type Alert struct {
	Rule       string             `json:"rule"`
	Severity   string             `json:"severity"`
	Instrument string             `json:"instrument"`
	Timeframe  core.Timeframe     `json:"timeframe"`
	Message    string             `json:"message"`
	Values     map[string]float64 `json:"values"`
	At         time.Time          `json:"at"`
}

// Text renders the alert for chat-style notifiers.
func (a Alert) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s %s", strings.ToUpper(a.Severity), a.Rule, a.Instrument, a.Timeframe)
	if a.Message != "" {
		fmt.Fprintf(&sb, ": %s", a.Message)
	}

	keys := make([]string, 0, len(a.Values))
	for k := range a.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4g", k, a.Values[k])
	}
	if len(parts) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(parts, " "))
	}
	return sb.String()
}

// Observer is told about every fired alert.
type Observer interface {
	ObserveAlert(rule, severity string)
}

type compiled struct {
	Rule
	cond condition
}

// Evaluator checks every published snapshot against its rules. A rule with
// a For duration fires only after matching continuously for that long, and
// a fired rule stays quiet for the cooldown. State is kept per rule and
// pair, with the snapshot time as the clock.
type Evaluator struct {
	rules     []compiled
	notifiers []Notifier
	cooldown  time.Duration
	logger    *zap.Logger
	observer  Observer

	mu        sync.Mutex
	pending   map[string]time.Time
	lastFired map[string]time.Time
	fired     []Alert
}

// NewEvaluator creates a new alert evaluator. Invalid rules are rejected.
func NewEvaluator(rules []Rule, notifiers []Notifier, logger *zap.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		notifiers: notifiers,
		cooldown:  30 * time.Minute,
		logger:    logger,
		pending:   make(map[string]time.Time),
		lastFired: make(map[string]time.Time),
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		c, _ := r.parse()
		e.rules = append(e.rules, compiled{Rule: r, cond: c})
	}
	return e, nil
}

// SetCooldown sets the cooldown duration between alerts of a rule and pair.
func (e *Evaluator) SetCooldown(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldown = d
}

// SetObserver sets the observer for fired alerts.
func (e *Evaluator) SetObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

// Name implements trend.Sink.
func (e *Evaluator) Name() string { return "alerts" }

// Publish implements trend.Sink. Alerts are sent to every notifier; failed
// deliveries are joined into the returned error.
func (e *Evaluator) Publish(ctx context.Context, snap *trend.Snapshot) error {
	alerts := e.Evaluate(snap)

	var errs []error
	for _, a := range alerts {
		e.logger.Info("alert fired",
			zap.String("rule", a.Rule),
			zap.String("instrument", a.Instrument),
			zap.String("timeframe", string(a.Timeframe)),
		)
		text := a.Text()
		for _, n := range e.notifiers {
			if err := n.Notify(ctx, text); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Evaluate advances the rule state with snap and returns the alerts that
// fire now.
func (e *Evaluator) Evaluate(snap *trend.Snapshot) []Alert {
	if snap == nil {
		return nil
	}
	now := snap.GeneratedAt
	if now.IsZero() {
		now = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Alert
	for _, r := range e.rules {
		for instrument, byTF := range snap.Trends {
			for tf, sum := range byTF {
				if !r.Applies(instrument, tf) {
					continue
				}
				if a, ok := e.step(r, instrument, tf, Values(sum, now), now); ok {
					out = append(out, a)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		if out[i].Instrument != out[j].Instrument {
			return out[i].Instrument < out[j].Instrument
		}
		return out[i].Timeframe.Minutes() < out[j].Timeframe.Minutes()
	})
	if e.observer != nil {
		for _, a := range out {
			e.observer.ObserveAlert(a.Rule, a.Severity)
		}
	}
	e.fired = append(e.fired, out...)
	if n := len(e.fired); n > 100 {
		e.fired = e.fired[n-100:]
	}
	return out
}

func (e *Evaluator) step(r compiled, instrument string, tf core.Timeframe, values map[string]float64, now time.Time) (Alert, bool) {
	key := r.Name + "|" + instrument + "|" + string(tf)

	if !r.cond.holds(values) {
		delete(e.pending, key)
		return Alert{}, false
	}

	if r.For > 0 {
		since, ok := e.pending[key]
		if !ok {
			e.pending[key] = now
			return Alert{}, false
		}
		if now.Sub(since) < r.For {
			return Alert{}, false
		}
	}

	if last, ok := e.lastFired[key]; ok && now.Sub(last) < e.cooldown {
		return Alert{}, false
	}

	e.lastFired[key] = now
	delete(e.pending, key)
	return Alert{
		Rule:       r.Name,
		Severity:   r.Severity,
		Instrument: instrument,
		Timeframe:  tf,
		Message:    r.Message,
		Values:     values,
		At:         now,
	}, true
}

// Recent returns the most recently fired alerts, oldest first.
func (e *Evaluator) Recent() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, len(e.fired))
	copy(out, e.fired)
	return out
}
