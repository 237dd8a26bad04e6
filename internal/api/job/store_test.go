package job

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/aitrader/internal/core"
)

// clockStore returns a store whose clock the test moves by hand.
func clockStore(maxSize int) (*Store, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(maxSize, time.Hour)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_Lifecycle(t *testing.T) {
	s, now := clockStore(10)

	j := s.Create("backtest", map[string]any{"instrument": "KRW-BTC"})
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, "KRW-BTC", j.Params["instrument"])

	require.NoError(t, s.Start(j.ID))
	*now = now.Add(90 * time.Second)
	require.NoError(t, s.Finish(j.ID, "result"))

	got, err := s.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, "result", got.Result)
	assert.True(t, got.Done())
	assert.Equal(t, 90*time.Second, got.Elapsed(*now))
}

func TestStore_InvalidTransitions(t *testing.T) {
	s, _ := clockStore(10)
	j := s.Create("backtest", nil)

	require.NoError(t, s.Fail(j.ID, core.ErrDataUnavailable))
	assert.Error(t, s.Start(j.ID), "failed job cannot start")
	assert.Error(t, s.Finish(j.ID, nil), "failed job cannot complete")

	got, _ := s.Get(j.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "DATA_UNAVAILABLE", got.Error.Code)
	assert.Zero(t, got.Elapsed(time.Now()), "never started")
}

func TestStore_NotFound(t *testing.T) {
	s, _ := clockStore(10)

	_, err := s.Get("nonexistent")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(s.Start("nonexistent"), core.ErrNotFound))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s, _ := clockStore(10)
	j := s.Create("backtest", nil)

	got, _ := s.Get(j.ID)
	got.Status = StatusComplete

	again, _ := s.Get(j.ID)
	assert.Equal(t, StatusPending, again.Status)
}

func TestStore_EvictsFinishedFirst(t *testing.T) {
	s, _ := clockStore(2)

	running := s.Create("backtest", nil)
	require.NoError(t, s.Start(running.ID))
	done := s.Create("backtest", nil)
	require.NoError(t, s.Finish(done.ID, nil))

	s.Create("backtest", nil)

	_, err := s.Get(done.ID)
	assert.Error(t, err, "finished job should be evicted first")
	_, err = s.Get(running.ID)
	assert.NoError(t, err)
	assert.Len(t, s.List(), 2)
}

func TestStore_EvictsOldestWhenNoneFinished(t *testing.T) {
	s, _ := clockStore(2)

	first := s.Create("backtest", nil)
	s.Create("backtest", nil)
	s.Create("backtest", nil)

	_, err := s.Get(first.ID)
	assert.Error(t, err)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s, _ := clockStore(10)
	s.Create("backtest", nil)
	s.Create("analysis", nil)

	jobs := s.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "analysis", jobs[0].Kind)
}

func TestStore_Cleanup(t *testing.T) {
	s, now := clockStore(10)

	stale := s.Create("backtest", nil)
	require.NoError(t, s.Finish(stale.ID, nil))
	running := s.Create("backtest", nil)
	require.NoError(t, s.Start(running.ID))

	*now = now.Add(2 * time.Hour)
	fresh := s.Create("backtest", nil)
	require.NoError(t, s.Fail(fresh.ID, core.ErrStrategyFailed))

	assert.Equal(t, 1, s.Cleanup())
	_, err := s.Get(stale.ID)
	assert.Error(t, err)
	assert.Len(t, s.List(), 2)

	assert.Zero(t, NewStore(10, 0).Cleanup(), "zero ttl keeps everything")
}
