// Package ledger records paper trades as an append-only list of balance
// changes. Balances are always folded from the entries.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/newthinker/aitrader/internal/core"
)

// Kind describes why an entry was appended.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindBuy      Kind = "buy"
	KindSell     Kind = "sell"
)

// Entry is one signed change of an asset balance.
type Entry struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Kind      Kind            `json:"kind"`
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Ledger is an append-only balance journal.
type Ledger interface {
	// Append stores all entries or none. It fails with ErrInsufficientBalance
	// when any resulting balance would turn negative.
	Append(ctx context.Context, entries ...Entry) ([]Entry, error)
	Balance(ctx context.Context, account, asset string) (decimal.Decimal, error)
	Balances(ctx context.Context, account string) (map[string]decimal.Decimal, error)
	// Entries returns the newest entries of an account first.
	Entries(ctx context.Context, account string, limit int) ([]Entry, error)
	Close() error
}

type balanceKey struct {
	account string
	asset   string
}

// assetCode is the stored form of an asset symbol.
func assetCode(asset string) string {
	return strings.ToUpper(asset)
}

// prepare validates entries and fills in IDs and timestamps.
func prepare(entries []Entry, now time.Time) ([]Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("ledger: no entries")
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Account == "" || e.Asset == "" {
			return nil, fmt.Errorf("ledger: entry %d: account and asset are required", i)
		}
		if e.Amount.IsZero() {
			return nil, fmt.Errorf("ledger: entry %d: zero amount", i)
		}
		e.Asset = assetCode(e.Asset)
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out[i] = e
	}
	return out, nil
}

// deltas sums the change per account and asset, keeping first-seen order.
func deltas(entries []Entry) ([]balanceKey, map[balanceKey]decimal.Decimal) {
	var order []balanceKey
	sum := make(map[balanceKey]decimal.Decimal)
	for _, e := range entries {
		k := balanceKey{e.Account, e.Asset}
		if _, ok := sum[k]; !ok {
			order = append(order, k)
		}
		sum[k] = sum[k].Add(e.Amount)
	}
	return order, sum
}

// checkBalances rejects a batch that would overdraw any balance.
func checkBalances(entries []Entry, current func(balanceKey) (decimal.Decimal, error)) error {
	order, sum := deltas(entries)
	for _, k := range order {
		bal, err := current(k)
		if err != nil {
			return err
		}
		if after := bal.Add(sum[k]); after.IsNegative() {
			return core.Errorf(core.ErrInsufficientBalance, "%s %s: balance %s, change %s", k.account, k.asset, bal, sum[k])
		}
	}
	return nil
}
