package notifier

import (
	"context"
	"slices"
	"sync"

	"github.com/newthinker/aitrader/internal/core"
)

// Registry holds the enabled notifiers by name.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds n. Names must be unique.
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return core.Errorf(core.ErrConfigInvalid, "notifier %s registered twice", name)
	}
	r.notifiers[name] = n
	return nil
}

func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifiers[name]
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "notifier %s", name)
	}
	return n, nil
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// Texters returns the notifiers that accept free text, ordered by name.
func (r *Registry) Texters() []Texter {
	var out []Texter
	for _, name := range r.Names() {
		n, err := r.Get(name)
		if err != nil {
			continue
		}
		if t, ok := n.(Texter); ok {
			out = append(out, t)
		}
	}
	return out
}

// NotifyAll sends signal to every notifier concurrently. The result maps
// failing notifier names to errors wrapping ErrNotifierFailed; one failure
// never stops the others.
func (r *Registry) NotifyAll(ctx context.Context, signal core.Signal) map[string]error {
	return r.fanOut(func(n Notifier) error { return n.Send(ctx, signal) })
}

// NotifyAllBatch is NotifyAll for several signals at once.
func (r *Registry) NotifyAllBatch(ctx context.Context, signals []core.Signal) map[string]error {
	return r.fanOut(func(n Notifier) error { return n.SendBatch(ctx, signals) })
}

func (r *Registry) fanOut(send func(Notifier) error) map[string]error {
	r.mu.RLock()
	targets := make(map[string]Notifier, len(r.notifiers))
	for name, n := range r.notifiers {
		targets[name] = n
	}
	r.mu.RUnlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = make(map[string]error)
	)
	for name, n := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := send(n); err != nil {
				mu.Lock()
				errs[name] = core.Errorf(core.ErrNotifierFailed, "%s: %w", name, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}
