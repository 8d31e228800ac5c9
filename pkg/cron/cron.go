// Package cron triggers scheduled jobs. Cron-expression jobs are evaluated
// with gronx; interval jobs fire every N seconds. Each due job dispatches on
// its own goroutine, with an in-flight guard so a slow run of a job skips
// that job's next tick instead of overlapping it (the memory file is
// single-writer per job name by convention).
package cron

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"golang.org/x/sync/errgroup"

	"github.com/clawcron/clawcron/pkg/config"
	"github.com/clawcron/clawcron/pkg/jobs"
	"github.com/clawcron/clawcron/pkg/logger"
)

// JobExecutor is the single entry point the scheduler drives.
type JobExecutor interface {
	ExecuteJob(ctx context.Context, job *config.JobConfig) jobs.Outcome
}

type jobState struct {
	job       *config.JobConfig
	nextRunAt time.Time
	running   bool
}

// Service owns the scheduling loop.
type Service struct {
	executor JobExecutor
	tick     time.Duration

	mu     sync.Mutex
	states []*jobState
}

// NewService builds a scheduler over every job in cfg that carries a
// schedule or an interval. On-demand-only jobs are ignored here.
func NewService(cfg *config.Config, executor JobExecutor) *Service {
	s := &Service{
		executor: executor,
		tick:     time.Second,
	}
	now := time.Now()
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.Schedule == "" && job.EverySeconds <= 0 {
			continue
		}
		s.states = append(s.states, &jobState{
			job:       job,
			nextRunAt: nextRun(job, now),
		})
	}
	return s
}

// Scheduled reports how many jobs the service watches.
func (s *Service) Scheduled() int {
	return len(s.states)
}

// NextRun returns the next planned run time for a job name.
func (s *Service) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st.job.Name == name {
			return st.nextRunAt, true
		}
	}
	return time.Time{}, false
}

// Start runs the scheduling loop until ctx is canceled, then waits for any
// in-flight job runs to settle.
func (s *Service) Start(ctx context.Context) error {
	logger.InfoCF("cron", "Scheduler started", map[string]any{
		"jobs": len(s.states),
	})

	group, runCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("cron", "Scheduler stopping, waiting for in-flight jobs")
			err := group.Wait()
			logger.InfoC("cron", "Scheduler stopped")
			return err

		case now := <-ticker.C:
			s.dispatchDue(runCtx, group, now)
		}
	}
}

func (s *Service) dispatchDue(ctx context.Context, group *errgroup.Group, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.states {
		if now.Before(st.nextRunAt) {
			continue
		}
		if st.running {
			// Previous run of this job still going; skip this slot.
			logger.WarnCF("cron", "Run still in flight, skipping tick", map[string]any{
				"job": st.job.Name,
			})
			st.nextRunAt = nextRun(st.job, now)
			continue
		}
		st.running = true
		st.nextRunAt = nextRun(st.job, now)

		st := st
		group.Go(func() error {
			defer func() {
				s.mu.Lock()
				st.running = false
				s.mu.Unlock()
			}()
			s.executor.ExecuteJob(ctx, st.job)
			return nil
		})
	}
}

// nextRun computes the next fire time after now.
func nextRun(job *config.JobConfig, now time.Time) time.Time {
	if job.EverySeconds > 0 {
		return now.Add(time.Duration(job.EverySeconds) * time.Second)
	}
	next, err := gronx.NextTickAfter(job.Schedule, now, false)
	if err != nil {
		// Config validation already vetted the expression; push the job a
		// minute out rather than spinning.
		logger.ErrorCF("cron", "Cron evaluation failed", map[string]any{
			"job":   job.Name,
			"expr":  job.Schedule,
			"error": err.Error(),
		})
		return now.Add(time.Minute)
	}
	return next
}
