// Package scheduler runs periodic jobs on robfig/cron with jittered periods.
package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config describes how often a job runs.
type Config struct {
	Period time.Duration
	// Jitter adds a random delay in [0, Jitter) to every period.
	Jitter     time.Duration
	RunOnStart bool
}

// Validate checks the period and jitter.
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", c.Period)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("jitter must not be negative, got %s", c.Jitter)
	}
	return nil
}

// JitterSchedule fires Period plus a random jitter after the previous run.
type JitterSchedule struct {
	Period time.Duration
	Jitter time.Duration
	rand   func(n int64) int64
}

// Next implements cron.Schedule.
func (s JitterSchedule) Next(t time.Time) time.Time {
	d := s.Period
	if s.Jitter > 0 {
		rnd := s.rand
		if rnd == nil {
			rnd = rand.Int64N
		}
		d += time.Duration(rnd(int64(s.Jitter)))
	}
	return t.Add(d)
}

type job struct {
	name    string
	cfg     Config
	wrapped cron.Job
}

// Scheduler owns a cron instance and the context handed to every job.
type Scheduler struct {
	cron   *cron.Cron
	chain  cron.Chain
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    []job
	started bool
	wg      sync.WaitGroup
}

// New creates a scheduler. Jobs panicking are recovered and a job still
// running when its next tick arrives is skipped.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := NewCronLogger(logger)
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl)),
		chain:  cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Every registers fn to run every cfg.Period (plus jitter).
func (s *Scheduler) Every(name string, cfg Config, fn func(ctx context.Context)) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	wrapped := s.chain.Then(cron.FuncJob(func() {
		started := time.Now()
		s.logger.Debug("job started", zap.String("job", name))
		fn(s.context())
		s.logger.Debug("job finished",
			zap.String("job", name),
			zap.Duration("duration", time.Since(started)),
		)
	}))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, cfg: cfg, wrapped: wrapped})
	s.cron.Schedule(JitterSchedule{Period: cfg.Period, Jitter: cfg.Jitter}, wrapped)
	return nil
}

// Start begins dispatching. Jobs receive a context derived from ctx that is
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	jobs := append([]job(nil), s.jobs...)
	s.mu.Unlock()

	for _, j := range jobs {
		if !j.cfg.RunOnStart {
			continue
		}
		s.wg.Add(1)
		go func(j job) {
			defer s.wg.Done()
			j.wrapped.Run()
		}(j)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(jobs)))
}

// Stop cancels the job context and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.name
	}
	return names
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}
