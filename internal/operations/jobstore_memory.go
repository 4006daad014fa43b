package operations

import (
	"sort"
	"sync"
	"time"

	"licenseadmin/pkg/contracts/domain"
)

// DefaultRetainJobs is how many finished jobs the memory store keeps.
const DefaultRetainJobs = 200

// JobFilter for querying jobs
type JobFilter struct {
	Kind   domain.JobKind
	Status domain.JobStatus
	Since  time.Time
	Limit  int
}

// MemoryJobStore keeps jobs in memory. Finished jobs beyond the retention
// limit are dropped oldest first; pending and running jobs are never dropped.
type MemoryJobStore struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	retain int
}

// NewMemoryJobStore creates a store retaining up to retain finished jobs.
// A non-positive retain uses DefaultRetainJobs.
func NewMemoryJobStore(retain int) *MemoryJobStore {
	if retain <= 0 {
		retain = DefaultRetainJobs
	}
	return &MemoryJobStore{
		jobs:   make(map[string]*Job),
		retain: retain,
	}
}

// Put adds or replaces a job.
func (s *MemoryJobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID()] = job
}

// Get retrieves a job by ID
func (s *MemoryJobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Len returns the number of stored jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// List returns snapshots matching filter, newest first.
func (s *MemoryJobStore) List(filter JobFilter) []domain.JobSnapshot {
	s.mu.RLock()
	snaps := make([]domain.JobSnapshot, 0, len(s.jobs))
	for _, job := range s.jobs {
		snaps = append(snaps, job.Snapshot())
	}
	s.mu.RUnlock()

	sortNewestFirst(snaps)

	result := make([]domain.JobSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if filter.Kind != "" && snap.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && snap.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && snap.CreatedAt.Before(filter.Since) {
			continue
		}

		result = append(result, snap)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// Prune drops the oldest finished jobs beyond the retention limit.
func (s *MemoryJobStore) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished []domain.JobSnapshot
	for _, job := range s.jobs {
		if snap := job.Snapshot(); snap.Status.IsTerminal() {
			finished = append(finished, snap)
		}
	}
	if len(finished) <= s.retain {
		return
	}

	sortNewestFirst(finished)
	for _, snap := range finished[s.retain:] {
		delete(s.jobs, snap.ID)
	}
}

func sortNewestFirst(snaps []domain.JobSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
}
