package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe is a candle bucket width.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe10m Timeframe = "10m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Timeframes lists every supported timeframe from shortest to longest.
var Timeframes = []Timeframe{
	Timeframe1m, Timeframe3m, Timeframe5m, Timeframe10m, Timeframe15m,
	Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d,
}

var timeframeMinutes = map[Timeframe]int{
	Timeframe1m:  1,
	Timeframe3m:  3,
	Timeframe5m:  5,
	Timeframe10m: 10,
	Timeframe15m: 15,
	Timeframe30m: 30,
	Timeframe1h:  60,
	Timeframe4h:  240,
	Timeframe1d:  1440,
}

// ParseTimeframe validates s against the supported set.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeMinutes[tf]; !ok {
		return "", Errorf(ErrUnsupportedTimeframe, "%q", s)
	}
	return tf, nil
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeMinutes[tf]
	return ok
}

// Minutes returns the bucket width in minutes, or 0 if unsupported.
func (tf Timeframe) Minutes() int {
	return timeframeMinutes[tf]
}

// Duration returns the bucket width.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}

// Sample is one closed (or in-progress) candle reduced to price and volume.
type Sample struct {
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
}

// Ticker is a live last-trade snapshot for a market.
type Ticker struct {
	Market     string    `json:"market"`
	Price      float64   `json:"price"`
	ChangeRate float64   `json:"change_rate"`
	Volume24h  float64   `json:"volume_24h"`
	Time       time.Time `json:"time"`
}

// TradeSide is the aggressor side of a trade.
type TradeSide string

const (
	SideBid TradeSide = "BID"
	SideAsk TradeSide = "ASK"
)

// Trade is a single executed trade tick.
type Trade struct {
	Market       string    `json:"market"`
	Price        float64   `json:"price"`
	Volume       float64   `json:"volume"`
	Side         TradeSide `json:"side"`
	SequentialID int64     `json:"sequential_id"`
	Time         time.Time `json:"time"`
}

// CrossKind distinguishes upward and downward crossings.
type CrossKind string

const (
	CrossGolden CrossKind = "GOLDEN"
	CrossDead   CrossKind = "DEAD"
)

// CrossEvent marks the sample where a short line crossed a long line.
type CrossEvent struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Kind  CrossKind `json:"kind"`
}

// ExtremumKind distinguishes local maxima and minima.
type ExtremumKind string

const (
	ExtremumPeak   ExtremumKind = "PEAK"
	ExtremumTrough ExtremumKind = "TROUGH"
)

// ExtremumEvent marks a local maximum or minimum of a line.
type ExtremumEvent struct {
	Index int          `json:"index"`
	Time  time.Time    `json:"time"`
	Kind  ExtremumKind `json:"kind"`
	Value float64      `json:"value"`
}

// Action represents a trading signal action
type Action string

const (
	ActionWait Action = "wait"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction converts a config string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionWait, ActionBuy, ActionSell, ActionHold:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Signal is a recommendation produced by a strategy.
type Signal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
	Action    Action    `json:"action"`
	Price     float64   `json:"price"`
	// Size is the suggested quantity. Nil on a SELL with FullPosition set
	// means the holding was unknown when the signal was produced.
	Size         *decimal.Decimal `json:"size,omitempty"`
	FullPosition bool             `json:"full_position,omitempty"`
	Reason       string           `json:"reason"`
	Strategy     string           `json:"strategy"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// IsActionable reports whether the signal asks for a trade.
func (s Signal) IsActionable() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}
