package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
)

// SplitMarket splits a market code such as KRW-BTC into quote and base.
func SplitMarket(market string) (quote, base string, err error) {
	parts := strings.Split(strings.ToUpper(market), "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", core.Errorf(core.ErrInvalidInstrument, "market %q", market)
	}
	return parts[0], parts[1], nil
}

// TradeEntries builds the two entries of a paper fill: the base asset moves
// by size and the quote asset by size*price in the opposite direction.
func TradeEntries(account, market string, action core.Action, size, price decimal.Decimal, reference string) ([]Entry, error) {
	quote, base, err := SplitMarket(market)
	if err != nil {
		return nil, err
	}
	if !size.IsPositive() || !price.IsPositive() {
		return nil, fmt.Errorf("ledger: size and price must be positive")
	}
	notional := size.Mul(price)

	var kind Kind
	switch action {
	case core.ActionBuy:
		kind = KindBuy
		notional = notional.Neg()
	case core.ActionSell:
		kind = KindSell
		size = size.Neg()
	default:
		return nil, fmt.Errorf("ledger: action %q does not trade", action)
	}

	return []Entry{
		{Account: account, Kind: kind, Asset: base, Amount: size, Price: price, Reference: reference},
		{Account: account, Kind: kind, Asset: quote, Amount: notional, Price: price, Reference: reference},
	}, nil
}

// Positions answers holding queries for one account.
type Positions struct {
	Ledger  Ledger
	Account string
}

// Holding returns the base asset balance of market, or nil when the account
// has never held it.
func (p Positions) Holding(ctx context.Context, market string) (*decimal.Decimal, error) {
	_, base, err := SplitMarket(market)
	if err != nil {
		return nil, err
	}
	balances, err := p.Ledger.Balances(ctx, p.Account)
	if err != nil {
		return nil, err
	}
	bal, ok := balances[base]
	if !ok {
		return nil, nil
	}
	return &bal, nil
}
