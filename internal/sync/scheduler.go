package sync

import (
	"context"
	stdsync "sync"

	"golang.org/x/sync/semaphore"
)

// TaskFunc is a single unit of scheduled work. It must not panic its way
// out; the scheduler recovers at the task boundary regardless.
type TaskFunc func(ctx context.Context)

// Scheduler executes queued tasks with a bounded number in flight and
// invokes a completion callback exactly once when the queue drains.
type Scheduler struct {
	sem *semaphore.Weighted

	mu        stdsync.Mutex
	pending   []TaskFunc
	cancelled bool

	wg       stdsync.WaitGroup
	doneOnce stdsync.Once
}

// NewScheduler creates a scheduler with the given concurrency cap.
func NewScheduler(maxConcurrency int) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		sem: semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

// Enqueue appends tasks to the pending queue. Must be called before Start.
func (s *Scheduler) Enqueue(tasks ...TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, tasks...)
}

// Start drains the queue with at most the configured number of tasks in
// flight, then calls onDone once. It blocks until completion.
func (s *Scheduler) Start(ctx context.Context, onDone func()) {
	for {
		task := s.next()
		if task == nil {
			break
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			// Context gone; in-flight tasks still run to completion.
			break
		}

		s.wg.Add(1)
		go func(task TaskFunc) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			defer func() {
				// A panicking task must not tear down the scheduler.
				_ = recover()
			}()
			task(ctx)
		}(task)
	}

	s.wg.Wait()
	if onDone != nil {
		s.doneOnce.Do(onDone)
	}
}

// CancelAll empties the pending queue. In-flight tasks continue to
// completion; no new tasks start.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.cancelled = true
}

// next pops the head of the pending queue, or nil when drained.
func (s *Scheduler) next() TaskFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || len(s.pending) == 0 {
		return nil
	}
	task := s.pending[0]
	s.pending = s.pending[1:]
	return task
}
