// Package job tracks long-running API requests, such as backtests, that
// finish after the response is sent.
package job

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/aitrader/internal/core"
)

// Status is a job's lifecycle state: pending, running, then complete or
// failed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Job is a snapshot of one tracked request.
type Job struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Params     map[string]any `json:"params,omitempty"`
	Status     Status         `json:"status"`
	Result     any            `json:"result,omitempty"`
	Error      *core.Error    `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Done reports whether the job reached a final status.
func (j Job) Done() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed
}

// Elapsed is the run time so far, or the total once finished.
func (j Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(*j.StartedAt)
	}
	return now.Sub(*j.StartedAt)
}

// Store keeps at most maxSize jobs. When full, the oldest finished job is
// evicted first. Finished jobs older than ttl are dropped by Cleanup.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string // creation order
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a job store.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a pending job.
func (s *Store) Create(kind string, params map[string]any) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= s.maxSize {
		s.evictLocked()
	}

	j := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    params,
		Status:    StatusPending,
		CreatedAt: s.now(),
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return *j
}

func (s *Store) evictLocked() {
	victim := 0
	for i, id := range s.order {
		if s.jobs[id].Done() {
			victim = i
			break
		}
	}
	delete(s.jobs, s.order[victim])
	s.order = slices.Delete(s.order, victim, victim+1)
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "job %s", id)
	}
	cp := *j
	return &cp, nil
}

// Start moves a pending job to running.
func (s *Store) Start(id string) error {
	return s.transition(id, func(j *Job, now time.Time) error {
		if j.Status != StatusPending {
			return fmt.Errorf("job %s is %s, not pending", id, j.Status)
		}
		j.Status = StatusRunning
		j.StartedAt = &now
		return nil
	})
}

// Finish completes a job with its result.
func (s *Store) Finish(id string, result any) error {
	return s.transition(id, func(j *Job, now time.Time) error {
		if j.Done() {
			return fmt.Errorf("job %s already %s", id, j.Status)
		}
		j.Status = StatusComplete
		j.Result = result
		j.FinishedAt = &now
		return nil
	})
}

// Fail ends a job with err.
func (s *Store) Fail(id string, err *core.Error) error {
	return s.transition(id, func(j *Job, now time.Time) error {
		if j.Done() {
			return fmt.Errorf("job %s already %s", id, j.Status)
		}
		j.Status = StatusFailed
		j.Error = err
		j.FinishedAt = &now
		return nil
	})
}

func (s *Store) transition(id string, fn func(*Job, time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.Errorf(core.ErrNotFound, "job %s", id)
	}
	return fn(j, s.now())
}

// List returns all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.jobs[s.order[i]])
	}
	return out
}

// Cleanup removes jobs that finished more than ttl ago and returns how many
// were removed. A zero ttl keeps jobs until they are evicted.
func (s *Store) Cleanup() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	before := len(s.order)
	s.order = slices.DeleteFunc(s.order, func(id string) bool {
		j := s.jobs[id]
		if j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			return true
		}
		return false
	})
	return before - len(s.order)
}
