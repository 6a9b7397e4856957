// Package memory provides the process-local job registry.
//
// Jobs are deliberately non-durable: a restart loses in-flight jobs and
// callers resubmit. Completed artifacts and the history log survive on
// disk, so nothing of record is lost.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-exam-grader/internal/domain"
)

// JobStore is a mutex-guarded registry implementing domain.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewJobStore constructs an empty registry.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]domain.Job)}
}

func newJobID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "result-" + hex[:12]
}

// Create registers a queued job for filename and returns it.
func (s *JobStore) Create(filename string) domain.Job {
	now := time.Now().UTC()
	j := domain.Job{
		ID:        newJobID(),
		Filename:  filename,
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return j
}

// Update merges patch into the stored job under exclusive access.
// Unknown ids and jobs already in a terminal state are left untouched;
// no partial update is ever observable.
func (s *JobStore) Update(id string, patch domain.JobPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.Error != nil {
		j.Error = *patch.Error
	}
	if patch.ResultPath != nil {
		j.ResultPath = *patch.ResultPath
	}
	if patch.CSVPath != nil {
		j.CSVPath = *patch.CSVPath
	}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
}

// Get returns the job for id.
func (s *JobStore) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	return j, ok
}
