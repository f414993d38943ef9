package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// Store is the process-wide jobId -> Job map. Every mutation goes through
// Mutate, which serializes writes to a single job behind that job's own
// lock and then broadcasts the resulting snapshot to subscribers.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subMu sync.Mutex
	subs  map[string][]chan *Job
}

func NewStore() *Store {
	return &Store{
		jobs:  make(map[string]*Job),
		locks: make(map[string]*sync.Mutex),
		subs:  make(map[string][]chan *Job),
	}
}

func (s *Store) lockFor(jobID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[jobID] = l
	}
	return l
}

// Create allocates a new job in state created and stores it.
func (s *Store) Create(principal, repository, prompt string, options Options) *Job {
	job := &Job{
		ID:         uuid.NewString(),
		Principal:  principal,
		Repository: repository,
		Prompt:     prompt,
		Options:    options,
		CreatedAt:  time.Now(),
		State:      StateCreated,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone()
}

// Restore inserts a job record as-is (used by the persistence snapshotter
// on boot). It bypasses Create's id allocation since the id is already
// fixed by the snapshot.
func (s *Store) Restore(job *Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job.Clone()
	s.mu.Unlock()
}

// Get returns jobID's record if principal owns it (or principal is the
// empty string, meaning "administrator" / internal caller).
func (s *Store) Get(jobID, principal string) (*Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, jferr.New(jferr.NotFound, fmt.Sprintf("job %q not found", jobID))
	}
	if principal != "" && job.Principal != principal {
		return nil, jferr.New(jferr.Forbidden, "job belongs to a different principal")
	}
	return job.Clone(), nil
}

// GetInternal returns jobID's record without an ownership check, for use by
// the pipeline coordinator and queue, which operate on behalf of the system
// rather than a specific caller.
func (s *Store) GetInternal(jobID string) (*Job, error) {
	return s.Get(jobID, "")
}

// ListForPrincipal returns every job owned by principal, newest first.
func (s *Store) ListForPrincipal(principal string) []*Job {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Principal == principal {
			out = append(out, job.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// HasActiveJobsForRepository implements repos.ReferenceChecker: true if any
// non-terminal job still references repository name.
func (s *Store) HasActiveJobsForRepository(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.Repository == name && !job.State.Terminal() {
			return true
		}
	}
	return false
}

// Mutate applies fn to jobID's record under that job's exclusive lock, then
// broadcasts the post-mutation snapshot to subscribers. fn operates on the
// live record in place; it must not retain the pointer past its call.
func (s *Store) Mutate(jobID string, fn func(*Job)) (*Job, error) {
	lock := s.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, jferr.New(jferr.NotFound, fmt.Sprintf("job %q not found", jobID))
	}

	fn(job)

	snapshot := job.Clone()
	s.broadcast(jobID, snapshot)
	return snapshot, nil
}

// Delete removes jobID, enforcing that it is in a terminal state unless
// force is set (the administrator path).
func (s *Store) Delete(jobID, principal string, force bool) error {
	job, err := s.Get(jobID, principal)
	if err != nil {
		return err
	}
	if !force && !job.State.Terminal() {
		return jferr.New(jferr.Conflict, fmt.Sprintf("job %q is not terminal", jobID))
	}

	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.locks, jobID)
	s.locksMu.Unlock()

	s.closeSubscribers(jobID)
	return nil
}

// Subscribe returns a channel that receives every post-Mutate snapshot for
// jobID until unsubscribe is called. The channel is buffered so a slow
// poller cannot block the mutating goroutine; if the buffer is full, the
// oldest unread snapshot is dropped in favor of the newest.
func (s *Store) Subscribe(jobID string) (ch <-chan *Job, unsubscribe func()) {
	c := make(chan *Job, 8)

	s.subMu.Lock()
	s.subs[jobID] = append(s.subs[jobID], c)
	s.subMu.Unlock()

	unsub := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		subs := s.subs[jobID]
		for i, existing := range subs {
			if existing == c {
				s.subs[jobID] = append(subs[:i], subs[i+1:]...)
				close(c)
				break
			}
		}
	}
	return c, unsub
}

func (s *Store) broadcast(jobID string, snapshot *Job) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, c := range s.subs[jobID] {
		select {
		case c <- snapshot:
		default:
			select {
			case <-c:
			default:
			}
			select {
			case c <- snapshot:
			default:
			}
		}
	}
}

func (s *Store) closeSubscribers(jobID string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, c := range s.subs[jobID] {
		close(c)
	}
	delete(s.subs, jobID)
}

// All returns every job currently in the store, for the persistence
// snapshotter.
func (s *Store) All() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	return out
}
