package signal

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/newthinker/aitrader/internal/core"
)

const defaultCapacity = 1000

// MemoryStore is a fixed-size ring of signals indexed by ID. Once full,
// each Save overwrites the oldest signal.
type MemoryStore struct {
	mu   sync.RWMutex
	ring []core.Signal
	next int // slot the next Save writes
	full bool
	byID map[string]int
}

// NewMemoryStore creates a store holding up to capacity signals.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{
		ring: make([]core.Signal, capacity),
		byID: make(map[string]int, capacity),
	}
}

func (m *MemoryStore) Save(ctx context.Context, sig core.Signal) (core.Signal, error) {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.full {
		if old := m.ring[m.next].ID; m.byID[old] == m.next {
			delete(m.byID, old)
		}
	}
	m.ring[m.next] = sig
	m.byID[sig.ID] = m.next
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
	return sig, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.byID[id]
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "signal %s", id)
	}
	sig := m.ring[slot]
	return &sig, nil
}

func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []core.Signal{}
	skip := filter.Offset
	m.newestFirst(func(sig core.Signal) bool {
		if !filter.Match(sig) {
			return true
		}
		if skip > 0 {
			skip--
			return true
		}
		out = append(out, sig)
		return filter.Limit <= 0 || len(out) < filter.Limit
	})
	return out, nil
}

func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	m.newestFirst(func(sig core.Signal) bool {
		if filter.Match(sig) {
			n++
		}
		return true
	})
	return n, nil
}

// newestFirst walks stored signals until fn returns false.
func (m *MemoryStore) newestFirst(fn func(core.Signal) bool) {
	size := m.next
	if m.full {
		size = len(m.ring)
	}
	for i := 1; i <= size; i++ {
		slot := (m.next - i + len(m.ring)) % len(m.ring)
		if !fn(m.ring[slot]) {
			return
		}
	}
}
