// Package paper records actionable recommendations as fills in a paper
// ledger. Nothing is sent to an exchange.
package paper

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/ledger"
)

// DefaultAccount is used when no account is configured.
const DefaultAccount = "paper"

// Paper fills recommendations into a ledger account.
type Paper struct {
	ledger  ledger.Ledger
	account string
	logger  *zap.Logger
}

// New creates a paper notifier writing to l, which must not be nil.
func New(l ledger.Ledger, account string, logger *zap.Logger) *Paper {
	if account == "" {
		account = DefaultAccount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paper{ledger: l, account: account, logger: logger}
}

func (p *Paper) Name() string { return "paper" }

// Account returns the ledger account fills are recorded in.
func (p *Paper) Account() string { return p.account }

// Fund deposits quote currency into the paper account.
func (p *Paper) Fund(ctx context.Context, asset string, amount decimal.Decimal) error {
	_, err := p.ledger.Append(ctx, ledger.Entry{
		Account: p.account,
		Kind:    ledger.KindDeposit,
		Asset:   asset,
		Amount:  amount,
	})
	return err
}

// Send fills BUY and SELL recommendations at the recommended price. Other
// actions are ignored.
func (p *Paper) Send(ctx context.Context, signal core.Signal) error {
	if signal.Action != core.ActionBuy && signal.Action != core.ActionSell {
		return nil
	}

	size, err := p.size(ctx, signal)
	if err != nil {
		return err
	}
	if !size.IsPositive() {
		p.logger.Debug("nothing to fill",
			zap.String("instrument", signal.Symbol),
			zap.String("action", string(signal.Action)),
		)
		return nil
	}

	entries, err := ledger.TradeEntries(p.account, signal.Symbol, signal.Action,
		size, decimal.NewFromFloat(signal.Price), signal.ID)
	if err != nil {
		return err
	}
	if _, err := p.ledger.Append(ctx, entries...); err != nil {
		return fmt.Errorf("paper %s %s: %w", signal.Action, signal.Symbol, err)
	}

	p.logger.Info("paper fill recorded",
		zap.String("instrument", signal.Symbol),
		zap.String("action", string(signal.Action)),
		zap.String("size", size.String()),
		zap.Float64("price", signal.Price),
	)
	return nil
}

func (p *Paper) SendBatch(ctx context.Context, signals []core.Signal) error {
	var failed int
	var last error
	for _, s := range signals {
		if err := p.Send(ctx, s); err != nil {
			failed++
			last = err
		}
	}
	if failed > 0 {
		return fmt.Errorf("paper: %d of %d fills failed, last: %w", failed, len(signals), last)
	}
	return nil
}

// size resolves the fill quantity. Full position sells without a size read
// the current holding.
func (p *Paper) size(ctx context.Context, signal core.Signal) (decimal.Decimal, error) {
	if signal.Size != nil {
		return *signal.Size, nil
	}
	if signal.Action == core.ActionSell && signal.FullPosition {
		h, err := ledger.Positions{Ledger: p.ledger, Account: p.account}.Holding(ctx, signal.Symbol)
		if err != nil {
			return decimal.Zero, err
		}
		if h == nil {
			return decimal.Zero, nil
		}
		return *h, nil
	}
	return decimal.Zero, nil
}
