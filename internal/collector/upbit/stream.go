package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
)

// DefaultStreamURL is the public Upbit WebSocket feed.
const DefaultStreamURL = "wss://api.upbit.com/websocket/v1"

// StreamConfig configures WebSocket stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default WebSocket configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      60 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Stream subscribes to Upbit real-time ticker and trade feeds. Each
// subscription owns its connection and reconnects until its context ends.
type Stream struct {
	endpoint  string
	config    StreamConfig
	logger    *zap.Logger
	connected atomic.Int32
}

// NewStream creates a stream client. An empty endpoint uses the public feed.
func NewStream(endpoint string, config *StreamConfig, logger *zap.Logger) *Stream {
	if endpoint == "" {
		endpoint = DefaultStreamURL
	}
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{endpoint: endpoint, config: cfg, logger: logger}
}

// Connected returns the number of live subscription connections.
func (s *Stream) Connected() int {
	return int(s.connected.Load())
}

// Tickers streams live tickers for codes. The channel closes when ctx ends.
func (s *Stream) Tickers(ctx context.Context, codes []string) (<-chan core.Ticker, error) {
	out := make(chan core.Ticker, 256)
	err := s.subscribe(ctx, "ticker", codes, func(raw []byte) {
		var msg tickerMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "ticker" {
			return
		}
		t := core.Ticker{
			Market:     msg.Code,
			Price:      msg.TradePrice,
			ChangeRate: msg.SignedChangeRate,
			Volume24h:  msg.AccTradeVolume24h,
			Time:       time.UnixMilli(msg.Timestamp).UTC(),
		}
		select {
		case out <- t:
		case <-ctx.Done():
		}
	}, func() { close(out) })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Trades streams live trades for codes. The channel closes when ctx ends.
func (s *Stream) Trades(ctx context.Context, codes []string) (<-chan core.Trade, error) {
	out := make(chan core.Trade, 1024)
	err := s.subscribe(ctx, "trade", codes, func(raw []byte) {
		var msg tradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "trade" {
			return
		}
		t := core.Trade{
			Market:       msg.Code,
			Price:        msg.TradePrice,
			Volume:       msg.TradeVolume,
			Side:         core.TradeSide(msg.AskBid),
			SequentialID: msg.SequentialID,
			Time:         time.UnixMilli(msg.TradeTimestamp).UTC(),
		}
		select {
		case out <- t:
		case <-ctx.Done():
		}
	}, func() { close(out) })
	if err != nil {
		return nil, err
	}
	return out, nil
}

// subscribe dials once synchronously so configuration errors surface to
// the caller, then keeps the subscription alive in the background.
func (s *Stream) subscribe(ctx context.Context, typ string, codes []string, handle func([]byte), done func()) error {
	if len(codes) == 0 {
		return fmt.Errorf("no codes to subscribe")
	}

	conn, err := s.dial(ctx, typ, codes)
	if err != nil {
		return err
	}

	go func() {
		defer done()
		delay := s.config.ReconnectDelay
		for {
			s.connected.Add(1)
			err := s.readLoop(ctx, conn, handle)
			s.connected.Add(-1)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("stream disconnected",
				zap.String("type", typ),
				zap.Error(err),
				zap.Duration("retry_in", delay),
			)

			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
				delay = min(delay*2, s.config.MaxReconnectDelay)

				conn, err = s.dial(ctx, typ, codes)
				if err == nil {
					delay = s.config.ReconnectDelay
					break
				}
				s.logger.Warn("stream reconnect failed", zap.String("type", typ), zap.Error(err))
			}
		}
	}()
	return nil
}

func (s *Stream) dial(ctx context.Context, typ string, codes []string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	req := []map[string]any{
		{"ticket": uuid.NewString()},
		{"type": typ, "codes": codes, "isOnlyRealtime": true},
		{"format": "DEFAULT"},
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("websocket subscribe: %w", err)
	}
	return conn, nil
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, handle func([]byte)) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		ticker := time.NewTicker(s.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				deadline := time.Now().Add(s.config.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	extend := func() {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}
	// pongs keep a quiet subscription alive between data frames
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		extend()
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(raw)
	}
}

// WebSocket message types (DEFAULT format)
type tickerMessage struct {
	Type              string  `json:"type"`
	Code              string  `json:"code"`
	TradePrice        float64 `json:"trade_price"`
	SignedChangeRate  float64 `json:"signed_change_rate"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	Timestamp         int64   `json:"timestamp"`
}

type tradeMessage struct {
	Type           string  `json:"type"`
	Code           string  `json:"code"`
	TradePrice     float64 `json:"trade_price"`
	TradeVolume    float64 `json:"trade_volume"`
	AskBid         string  `json:"ask_bid"`
	SequentialID   int64   `json:"sequential_id"`
	TradeTimestamp int64   `json:"trade_timestamp"`
}
