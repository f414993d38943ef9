// Package queue implements the single logical FIFO admission queue: at
// most maxConcurrent jobs are ever handed to the pipeline coordinator at
// once, and admission strictly preserves arrival order.
package queue

import (
	"context"
	"sync"

	"github.com/lightspeed/jobforge/internal/jferr"
	"github.com/lightspeed/jobforge/internal/jobs"
	"github.com/lightspeed/jobforge/internal/logging"
)

// Admitter is the pipeline coordinator's side of admission: Admit is called
// once per job, on its own goroutine, exactly when the scheduler has
// capacity for it; it runs the job to completion (or cancellation) and calls
// back into Scheduler.Release when done.
type Admitter interface {
	Admit(ctx context.Context, jobID string)
}

// Canceller forwards cancellation to an already-admitted job's pipeline
// run.
type Canceller interface {
	Cancel(jobID string) error
}

// Scheduler owns the FIFO of queued job ids and the running-count gate.
type Scheduler struct {
	store         *jobs.Store
	admitter      Admitter
	canceller     Canceller
	maxConcurrent int

	mu      sync.Mutex
	pending []string
	running int
	wake    chan struct{}
}

func NewScheduler(store *jobs.Store, admitter Admitter, canceller Canceller, maxConcurrent int) *Scheduler {
	s := &Scheduler{
		store:         store,
		admitter:      admitter,
		canceller:     canceller,
		maxConcurrent: maxConcurrent,
		wake:          make(chan struct{}, 1),
	}
	return s
}

// Run drives the admission loop until ctx is cancelled. Exactly one Run
// goroutine should be active per Scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.admitReady(ctx)
		}
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Enqueue transitions jobID to queued, assigns it a FIFO position, and
// wakes the admission worker.
func (s *Scheduler) Enqueue(jobID string) error {
	s.mu.Lock()
	s.pending = append(s.pending, jobID)
	s.recomputePositionsLocked()
	s.mu.Unlock()

	if _, err := s.store.Mutate(jobID, func(j *jobs.Job) {
		j.State = jobs.StateQueued
	}); err != nil {
		return err
	}

	s.signal()
	return nil
}

// Requeue restores jobID at the tail of the pending queue without changing
// its stored state, used during boot reconciliation for jobs that were
// already queued.
func (s *Scheduler) Requeue(jobID string) {
	s.mu.Lock()
	s.pending = append(s.pending, jobID)
	s.recomputePositionsLocked()
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) recomputePositionsLocked() {
	for i, id := range s.pending {
		pos := i + 1
		go func(jobID string, position int) {
			s.store.Mutate(jobID, func(j *jobs.Job) {
				j.QueuePosition = position
			})
		}(id, pos)
	}
}

func (s *Scheduler) admitReady(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.running >= s.maxConcurrent || len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		jobID := s.pending[0]
		s.pending = s.pending[1:]
		s.running++
		s.recomputePositionsLocked()
		s.mu.Unlock()

		if _, err := s.store.Mutate(jobID, func(j *jobs.Job) {
			j.State = jobs.StateStaging
			j.QueuePosition = 0
		}); err != nil {
			logging.Error("admitting job %s: %v", jobID, err)
			s.Release()
			continue
		}

		go s.admitter.Admit(ctx, jobID)
	}
}

// Release returns one unit of running capacity to the pool and wakes the
// admission worker. The pipeline coordinator calls this once a job reaches
// a terminal state.
func (s *Scheduler) Release() {
	s.mu.Lock()
	if s.running > 0 {
		s.running--
	}
	s.mu.Unlock()
	s.signal()
}

// Cancel removes jobID from the pending queue (transitioning it directly
// to cancelled) if it hasn't been admitted yet, or forwards to the
// coordinator's cancellation path if it has.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	for i, id := range s.pending {
		if id == jobID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.recomputePositionsLocked()
			s.mu.Unlock()

			_, err := s.store.Mutate(jobID, func(j *jobs.Job) {
				j.State = jobs.StateCancelled
				j.QueuePosition = 0
			})
			return err
		}
	}
	s.mu.Unlock()

	job, err := s.store.GetInternal(jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}
	if s.canceller == nil {
		return jferr.New(jferr.System, "no active pipeline to cancel")
	}
	return s.canceller.Cancel(jobID)
}
