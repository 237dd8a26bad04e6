// Package alert raises notifications when trend summaries cross configured
// thresholds, for example a 1h angle steeper than 45 degrees.
package alert

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/trend"
)

// Values a rule expression can reference.
const (
	ValueSlope          = "slope"
	ValueAngle          = "angle_degrees"
	ValueDiffRate       = "diff_rate"
	ValueReversalCount  = "reversal_count"
	ValueReversalAgeMin = "reversal_age_min"
)

var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?[\d.]+)$`)

// Rule defines an alert rule.
type Rule struct {
	Name     string        `mapstructure:"name"`
	Expr     string        `mapstructure:"expr"`
	For      time.Duration `mapstructure:"for"`
	Severity string        `mapstructure:"severity"`
	Message  string        `mapstructure:"message"`
	// Instruments and Timeframes restrict the rule, empty matches all.
	Instruments []string         `mapstructure:"instruments"`
	Timeframes  []core.Timeframe `mapstructure:"timeframes"`
}

type condition struct {
	value     string
	op        string
	threshold float64
}

func (r Rule) parse() (condition, error) {
	m := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr))
	if len(m) != 4 {
		return condition{}, fmt.Errorf("alert %s: expression %q is not \"value op number\"", r.Name, r.Expr)
	}
	threshold, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return condition{}, fmt.Errorf("alert %s: threshold: %w", r.Name, err)
	}
	return condition{value: m[1], op: m[2], threshold: threshold}, nil
}

// Validate reports whether the rule can be evaluated.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("alert: rule name is required")
	}
	c, err := r.parse()
	if err != nil {
		return err
	}
	switch c.value {
	case ValueSlope, ValueAngle, ValueDiffRate, ValueReversalCount, ValueReversalAgeMin:
	default:
		return fmt.Errorf("alert %s: unknown value %q", r.Name, c.value)
	}
	for _, tf := range r.Timeframes {
		if !tf.Valid() {
			return core.Errorf(core.ErrUnsupportedTimeframe, "alert %s: %q", r.Name, tf)
		}
	}
	if r.For < 0 {
		return fmt.Errorf("alert %s: for must not be negative", r.Name)
	}
	return nil
}

// Applies reports whether the rule covers the pair.
func (r Rule) Applies(instrument string, tf core.Timeframe) bool {
	if len(r.Instruments) > 0 && !slices.Contains(r.Instruments, instrument) {
		return false
	}
	return len(r.Timeframes) == 0 || slices.Contains(r.Timeframes, tf)
}

// Evaluate evaluates the rule expression against values. A missing value
// never matches.
func (r Rule) Evaluate(values map[string]float64) bool {
	c, err := r.parse()
	if err != nil {
		return false
	}
	return c.holds(values)
}

func (c condition) holds(values map[string]float64) bool {
	value, ok := values[c.value]
	if !ok {
		return false
	}
	switch c.op {
	case ">":
		return value > c.threshold
	case "<":
		return value < c.threshold
	case ">=":
		return value >= c.threshold
	case "<=":
		return value <= c.threshold
	case "==":
		return value == c.threshold
	case "!=":
		return value != c.threshold
	}
	return false
}

// Values extracts the rule inputs of a summary at now. Undefined slope,
// angle and diff rate are left out so rules on them cannot fire.
func Values(s trend.Summary, now time.Time) map[string]float64 {
	v := map[string]float64{ValueReversalCount: float64(s.ReversalCount)}
	if s.Slope != nil {
		v[ValueSlope] = *s.Slope
	}
	if s.AngleDegrees != nil {
		v[ValueAngle] = *s.AngleDegrees
	}
	if s.DiffRate != nil {
		v[ValueDiffRate] = *s.DiffRate
	}
	if s.LastReversalAt != nil {
		v[ValueReversalAgeMin] = now.Sub(*s.LastReversalAt).Minutes()
	}
	return v
}
