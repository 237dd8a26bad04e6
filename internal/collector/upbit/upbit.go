// Package upbit is a read-only client for the Upbit public quotation API.
package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

const (
	baseURL = "https://api.upbit.com"

	// maxCandlesPerRequest is the page size limit of the candle endpoints.
	maxCandlesPerRequest = 200

	candleTimeLayout = "2006-01-02T15:04:05"
)

// Upbit implements the collector Provider interface over REST.
type Upbit struct {
	client  *http.Client
	baseURL string
}

// New creates a new Upbit provider
func New() *Upbit {
	return &Upbit{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// NewWithBaseURL creates an Upbit provider with custom base URL (for testing)
func NewWithBaseURL(url string) *Upbit {
	u := New()
	u.baseURL = strings.TrimRight(url, "/")
	return u
}

// WithTimeout sets the HTTP client timeout.
func (u *Upbit) WithTimeout(d time.Duration) *Upbit {
	if d > 0 {
		u.client.Timeout = d
	}
	return u
}

func (u *Upbit) Name() string {
	return "upbit"
}

// candlePath maps a timeframe to its candle endpoint.
func candlePath(tf core.Timeframe) (string, error) {
	switch tf {
	case core.Timeframe1d:
		return "/v1/candles/days", nil
	case core.Timeframe1m, core.Timeframe3m, core.Timeframe5m, core.Timeframe10m,
		core.Timeframe15m, core.Timeframe30m, core.Timeframe1h, core.Timeframe4h:
		return fmt.Sprintf("/v1/candles/minutes/%d", tf.Minutes()), nil
	}
	return "", core.Errorf(core.ErrUnsupportedTimeframe, "%q", tf)
}

// Candles fetches up to count candles, newest first. Counts above the page
// limit are fetched in pages walking backwards in time.
func (u *Upbit) Candles(ctx context.Context, market string, tf core.Timeframe, count int) ([]core.Sample, error) {
	path, err := candlePath(tf)
	if err != nil {
		return nil, err
	}

	samples := make([]core.Sample, 0, count)
	var to string
	for len(samples) < count {
		page := min(count-len(samples), maxCandlesPerRequest)

		q := url.Values{}
		q.Set("market", market)
		q.Set("count", strconv.Itoa(page))
		if to != "" {
			q.Set("to", to)
		}

		var candles []candle
		if err := u.get(ctx, path, q, &candles); err != nil {
			return nil, fmt.Errorf("fetching candles: %w", err)
		}
		if len(candles) == 0 {
			break
		}

		for _, c := range candles {
			ts, err := time.ParseInLocation(candleTimeLayout, c.CandleDateTimeUTC, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("parsing candle time %q: %w", c.CandleDateTimeUTC, err)
			}
			samples = append(samples, core.Sample{
				Time:   ts,
				Price:  c.TradePrice,
				Volume: c.CandleAccTradeVolume,
			})
		}

		if len(candles) < page {
			break
		}
		to = samples[len(samples)-1].Time.Format(time.RFC3339)
	}

	return samples, nil
}

// Ticker fetches the live ticker of each market.
func (u *Upbit) Ticker(ctx context.Context, markets ...string) ([]core.Ticker, error) {
	q := url.Values{}
	q.Set("markets", strings.Join(markets, ","))

	var result []ticker
	if err := u.get(ctx, "/v1/ticker", q, &result); err != nil {
		return nil, fmt.Errorf("fetching ticker: %w", err)
	}
	return toTickers(result), nil
}

// AllTickers fetches the live ticker of every market quoted in quote (e.g. KRW).
func (u *Upbit) AllTickers(ctx context.Context, quote string) ([]core.Ticker, error) {
	q := url.Values{}
	q.Set("quote_currencies", strings.ToUpper(quote))

	var result []ticker
	if err := u.get(ctx, "/v1/ticker/all", q, &result); err != nil {
		return nil, fmt.Errorf("fetching all tickers: %w", err)
	}
	return toTickers(result), nil
}

// Trades fetches the most recent trade ticks, newest first.
func (u *Upbit) Trades(ctx context.Context, market string, count int) ([]core.Trade, error) {
	q := url.Values{}
	q.Set("market", market)
	q.Set("count", strconv.Itoa(count))

	var result []tradeTick
	if err := u.get(ctx, "/v1/trades/ticks", q, &result); err != nil {
		return nil, fmt.Errorf("fetching trades: %w", err)
	}

	trades := make([]core.Trade, 0, len(result))
	for _, t := range result {
		trades = append(trades, core.Trade{
			Market:       t.Market,
			Price:        t.TradePrice,
			Volume:       t.TradeVolume,
			Side:         core.TradeSide(t.AskBid),
			SequentialID: t.SequentialID,
			Time:         time.UnixMilli(t.Timestamp).UTC(),
		})
	}
	return trades, nil
}

// Markets lists tradable market codes, optionally filtered by quote currency.
func (u *Upbit) Markets(ctx context.Context, quote string) ([]string, error) {
	var result []marketInfo
	if err := u.get(ctx, "/v1/market/all", url.Values{}, &result); err != nil {
		return nil, fmt.Errorf("fetching markets: %w", err)
	}

	prefix := strings.ToUpper(quote) + "-"
	markets := make([]string, 0, len(result))
	for _, m := range result {
		if quote == "" || strings.HasPrefix(m.Market, prefix) {
			markets = append(markets, m.Market)
		}
	}
	return markets, nil
}

func (u *Upbit) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := u.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func toTickers(in []ticker) []core.Ticker {
	out := make([]core.Ticker, 0, len(in))
	for _, t := range in {
		out = append(out, core.Ticker{
			Market:     t.Market,
			Price:      t.TradePrice,
			ChangeRate: t.SignedChangeRate,
			Volume24h:  t.AccTradeVolume24h,
			Time:       time.UnixMilli(t.Timestamp).UTC(),
		})
	}
	return out
}

// Upbit API response types
type candle struct {
	Market               string  `json:"market"`
	CandleDateTimeUTC    string  `json:"candle_date_time_utc"`
	CandleDateTimeKST    string  `json:"candle_date_time_kst"`
	OpeningPrice         float64 `json:"opening_price"`
	HighPrice            float64 `json:"high_price"`
	LowPrice             float64 `json:"low_price"`
	TradePrice           float64 `json:"trade_price"`
	Timestamp            int64   `json:"timestamp"`
	CandleAccTradePrice  float64 `json:"candle_acc_trade_price"`
	CandleAccTradeVolume float64 `json:"candle_acc_trade_volume"`
}

type ticker struct {
	Market            string  `json:"market"`
	TradePrice        float64 `json:"trade_price"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	Timestamp         int64   `json:"timestamp"`
}

type tradeTick struct {
	Market       string  `json:"market"`
	TradePrice   float64 `json:"trade_price"`
	TradeVolume  float64 `json:"trade_volume"`
	AskBid       string  `json:"ask_bid"`
	SequentialID int64   `json:"sequential_id"`
	Timestamp    int64   `json:"timestamp"`
}

type marketInfo struct {
	Market      string `json:"market"`
	KoreanName  string `json:"korean_name"`
	EnglishName string `json:"english_name"`
}
