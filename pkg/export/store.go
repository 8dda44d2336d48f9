package export

import (
	"sync"
)

// Store holds the live state of in-flight and finished export jobs, keyed by
// job identifier. Reads are snapshot copies and safe during writes; item
// updates are atomic, so a poller never observes a half-applied transition.
// Nothing persists across process restarts.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a freshly submitted job. The job record becomes owned by
// the store; the orchestrator mutates it only through UpdateItem/UpdateJob.
func (s *Store) Create(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

// Read returns a deep-copied snapshot of the job, or ErrNotFound.
func (s *Store) Read(jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return job.clone(), nil
}

// Status returns just the overall job status, or ErrNotFound.
func (s *Store) Status(jobID string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return "", ErrNotFound
	}
	return job.Status, nil
}

// UpdateItem applies fn to one item entry atomically. The orchestrator's
// single-owner processing guarantees no two workers update the same
// (job, form) pair concurrently.
func (s *Store) UpdateItem(jobID, formID string, fn func(*Item)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	item, ok := job.Items[formID]
	if !ok {
		return ErrNotFound
	}
	fn(&item)
	job.Items[formID] = item
	return nil
}

// UpdateJob applies fn to the job record atomically.
func (s *Store) UpdateJob(jobID string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	fn(job)
	return nil
}

// Evict drops a job record. Missing identifiers are a no-op.
func (s *Store) Evict(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}
