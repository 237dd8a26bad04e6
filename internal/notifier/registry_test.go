package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/aitrader/internal/core"
)

type mockNotifier struct {
	name       string
	sendCalled int
	batchCalls int
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(ctx context.Context, signal core.Signal) error {
	m.sendCalled++
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func (m *mockNotifier) SendBatch(ctx context.Context, signals []core.Signal) error {
	m.batchCalls++
	if m.shouldFail {
		return errors.New("batch send failed")
	}
	return nil
}

type mockTexter struct {
	mockNotifier
	texts []string
}

func (m *mockTexter) Notify(ctx context.Context, text string) error {
	m.texts = append(m.texts, text)
	return nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	mock := &mockNotifier{name: "test"}

	require.NoError(t, r.Register(mock))
	err := r.Register(mock)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "got %v", err)
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockNotifier{name: "test"}))

	n, err := r.Get("test")
	require.NoError(t, err)
	assert.Equal(t, "test", n.Name())

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})
	r.Register(&mockNotifier{name: "paper"})

	assert.Equal(t, []string{"paper", "webhook"}, r.Names())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Texters(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "paper"})
	r.Register(&mockTexter{mockNotifier: mockNotifier{name: "webhook"}})
	r.Register(&mockTexter{mockNotifier: mockNotifier{name: "telegram"}})

	texters := r.Texters()
	require.Len(t, texters, 2)
	assert.Equal(t, "telegram", texters[0].Name())
	assert.Equal(t, "webhook", texters[1].Name())
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()
	ok := &mockNotifier{name: "ok"}
	bad := &mockNotifier{name: "bad", shouldFail: true}
	r.Register(ok)
	r.Register(bad)

	errs := r.NotifyAll(context.Background(), core.Signal{Symbol: "KRW-BTC", Action: core.ActionBuy})

	assert.Equal(t, 1, ok.sendCalled)
	assert.Equal(t, 1, bad.sendCalled)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs["bad"], core.ErrNotifierFailed), "got %v", errs["bad"])
	assert.ErrorContains(t, errs["bad"], "bad: send failed")
}

func TestRegistry_NotifyAllBatch(t *testing.T) {
	r := NewRegistry()
	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	errs := r.NotifyAllBatch(context.Background(), []core.Signal{{Symbol: "KRW-BTC"}, {Symbol: "KRW-ETH"}})
	assert.Empty(t, errs)
	assert.Equal(t, 1, mock.batchCalls)
}

func TestRegistry_NotifyAll_Empty(t *testing.T) {
	assert.Empty(t, NewRegistry().NotifyAll(context.Background(), core.Signal{}))
}
