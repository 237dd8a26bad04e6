// Package webhook posts recommendations to an HTTP endpoint as JSON.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/newthinker/aitrader/internal/core"
)

// Webhook posts JSON documents to a fixed URL.
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// New returns a notifier posting to rawURL with the extra headers set on
// every request. The URL must be absolute http or https.
func New(rawURL string, headers map[string]string) (*Webhook, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook: url %q must be absolute http(s)", rawURL)
	}
	return &Webhook{
		url:     rawURL,
		headers: maps.Clone(headers),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, signal core.Signal) error {
	return w.post(ctx, payload(signal))
}

func (w *Webhook) SendBatch(ctx context.Context, signals []core.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	payloads := make([]map[string]any, len(signals))
	for i, sig := range signals {
		payloads[i] = payload(sig)
	}

	return w.post(ctx, map[string]any{
		"type":    "batch",
		"count":   len(signals),
		"signals": payloads,
	})
}

// Notify posts free-form text such as a trend alert.
func (w *Webhook) Notify(ctx context.Context, text string) error {
	return w.post(ctx, map[string]any{
		"type": "alert",
		"text": text,
	})
}

func payload(signal core.Signal) map[string]any {
	p := map[string]any{
		"type":         "recommendation",
		"id":           signal.ID,
		"instrument":   signal.Symbol,
		"timeframe":    signal.Timeframe,
		"action":       signal.Action,
		"price":        signal.Price,
		"reason":       signal.Reason,
		"strategy":     signal.Strategy,
		"metadata":     signal.Metadata,
		"generated_at": signal.GeneratedAt.Format(time.RFC3339),
	}
	if signal.Size != nil {
		p["size"] = signal.Size.String()
	}
	if signal.FullPosition {
		p["full_position"] = true
	}
	return p
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}
	return nil
}
