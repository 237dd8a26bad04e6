// Package notifier fans routed recommendations out to delivery channels.
package notifier

import (
	"context"

	"github.com/newthinker/aitrader/internal/core"
)

// Notifier delivers recommendations to a person or system. Implementations
// are configured by their constructors and must be safe for concurrent use.
type Notifier interface {
	Name() string
	Send(ctx context.Context, signal core.Signal) error
	SendBatch(ctx context.Context, signals []core.Signal) error
}

// Texter is a Notifier that can also deliver free text, used for trend
// alerts.
type Texter interface {
	Notifier
	Notify(ctx context.Context, text string) error
}
