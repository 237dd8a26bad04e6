package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory is an in-process ledger used by tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Append(ctx context.Context, entries ...Entry) ([]Entry, error) {
	prepared, err := prepare(entries, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = checkBalances(prepared, func(k balanceKey) (decimal.Decimal, error) {
		return m.balanceLocked(k.account, k.asset), nil
	})
	if err != nil {
		return nil, err
	}
	m.entries = append(m.entries, prepared...)
	return prepared, nil
}

func (m *Memory) Balance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(account, assetCode(asset)), nil
}

func (m *Memory) Balances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]decimal.Decimal)
	for _, e := range m.entries {
		if e.Account == account {
			out[e.Asset] = out[e.Asset].Add(e.Amount)
		}
	}
	return out, nil
}

func (m *Memory) Entries(ctx context.Context, account string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Account != account {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) balanceLocked(account, asset string) decimal.Decimal {
	bal := decimal.Zero
	for _, e := range m.entries {
		if e.Account == account && e.Asset == asset {
			bal = bal.Add(e.Amount)
		}
	}
	return bal
}
