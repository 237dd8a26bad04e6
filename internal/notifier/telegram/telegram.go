// Package telegram sends recommendations through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram posts Markdown messages to one chat.
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// Option customizes a Telegram notifier.
type Option func(*Telegram)

// WithAPIBase points the notifier at another Bot API host.
func WithAPIBase(base string) Option {
	return func(t *Telegram) {
		if base != "" {
			t.apiBase = strings.TrimSuffix(base, "/")
		}
	}
}

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Telegram) {
		if c != nil {
			t.client = c
		}
	}
}

// New returns a notifier for the bot token and chat. Both are required.
func New(botToken, chatID string, opts ...Option) (*Telegram, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram: bot_token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("telegram: chat_id is required")
	}
	t := &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, signal core.Signal) error {
	return t.sendMessage(ctx, formatSignal(signal))
}

func (t *Telegram) SendBatch(ctx context.Context, signals []core.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *%d recommendations*\n\n", len(signals))
	for i, signal := range signals {
		sb.WriteString(formatSignal(signal))
		if i < len(signals)-1 {
			sb.WriteString("\n---\n\n")
		}
	}
	return t.sendMessage(ctx, sb.String())
}

// Notify sends free-form text such as a trend alert.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	return t.sendMessage(ctx, "🚨 "+text)
}

func formatSignal(signal core.Signal) string {
	var sb strings.Builder

	emoji := "⏸️"
	switch signal.Action {
	case core.ActionBuy:
		emoji = "📈"
	case core.ActionSell:
		emoji = "📉"
	case core.ActionWait:
		emoji = "⏳"
	}

	fmt.Fprintf(&sb, "%s *%s* %s", emoji, signal.Symbol, strings.ToUpper(string(signal.Action)))
	if signal.Timeframe != "" {
		fmt.Fprintf(&sb, " (%s)", signal.Timeframe)
	}
	sb.WriteString("\n")

	if signal.Price > 0 {
		fmt.Fprintf(&sb, "💰 Price: %s\n", formatPrice(signal.Price))
	}
	if signal.Size != nil {
		fmt.Fprintf(&sb, "📦 Size: %s\n", signal.Size.String())
	} else if signal.FullPosition {
		sb.WriteString("📦 Size: full position\n")
	}
	if signal.Strategy != "" {
		fmt.Fprintf(&sb, "🎯 Strategy: %s\n", signal.Strategy)
	}
	if signal.Reason != "" {
		fmt.Fprintf(&sb, "💡 Reason: %s\n", signal.Reason)
	}
	fmt.Fprintf(&sb, "⏰ Time: %s", signal.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))

	return sb.String()
}

// formatPrice prints KRW style prices without decimals and small prices with
// enough precision to be useful.
func formatPrice(p float64) string {
	switch {
	case p >= 100:
		return fmt.Sprintf("%.0f", p)
	case p >= 1:
		return fmt.Sprintf("%.2f", p)
	default:
		return fmt.Sprintf("%.8f", p)
	}
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}
	return nil
}
