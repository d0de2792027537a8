// Package scheduler implements the fixed-interval bounded-concurrency
// periodic executor described in spec.md §4.4: coalescing of missed fires,
// max_instances=1 per job, and a per-fire timeout of interval-1s (the
// "misfire grace").
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one recurring unit of work. ID must be unique across all jobs
// registered with a Scheduler.
type Job struct {
	ID    string
	Every time.Duration
	Run   func(ctx context.Context)
}

type jobEntry struct {
	job     Job
	nextRun time.Time
	running atomic.Bool
}

// Scheduler dispatches Jobs at their configured interval, bounded by a fixed
// worker pool of size maxThreads (spec.md §4.4).
type Scheduler struct {
	logger *slog.Logger
	sem    chan struct{}

	mu      sync.Mutex
	entries []*jobEntry

	done chan struct{}
}

// New creates a Scheduler with the given worker pool size. Call Start to
// begin dispatching.
func New(maxThreads int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if maxThreads <= 0 {
		maxThreads = 1
	}
	return &Scheduler{
		logger: logger,
		sem:    make(chan struct{}, maxThreads),
		done:   make(chan struct{}),
	}
}

// Register adds job to the schedule, to fire immediately on the next tick
// and every job.Every thereafter.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &jobEntry{job: job, nextRun: time.Now()})
}

// Start runs the scheduling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}
		sort.Slice(s.entries, func(i, j int) bool {
			return s.entries[i].nextRun.Before(s.entries[j].nextRun)
		})
		next := s.entries[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		now := time.Now()
		s.mu.Lock()
		for _, e := range s.entries {
			if e.nextRun.After(now) {
				break
			}
			// Missed fires within one interval coalesce into a single
			// fire: reset nextRun unconditionally, regardless of how
			// overdue the entry was.
			e.nextRun = now.Add(e.job.Every)
			s.fire(ctx, e)
		}
		s.mu.Unlock()
	}
}

// fire dispatches e.job if it is not already running (max_instances=1;
// spec.md §4.4) onto the bounded worker pool.
func (s *Scheduler) fire(ctx context.Context, e *jobEntry) {
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Debug("scheduler: job still running, suppressing fire", "job", e.job.ID)
		return
	}

	select {
	case s.sem <- struct{}{}:
	default:
		e.running.Store(false)
		s.logger.Warn("scheduler: worker pool full, dropping fire", "job", e.job.ID)
		return
	}

	grace := e.job.Every - time.Second
	if grace <= 0 {
		grace = e.job.Every
	}

	go func() {
		defer func() { <-s.sem }()
		defer e.running.Store(false)

		jobCtx, cancel := context.WithTimeout(ctx, grace)
		defer cancel()
		e.job.Run(jobCtx)
	}()
}

// Stop waits for the scheduling loop to exit. Cancel the context passed to
// Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.done
}

// Count returns the number of registered jobs.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
