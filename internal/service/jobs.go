package service

import (
	"sync"
	"time"
)

// Relay job states.
const (
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

// JobStatus is the state of one background relay job.
type JobStatus struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ImageURL    string    `json:"image_url"`
	Status      string    `json:"status"` // running, complete, error
	Outcome     string    `json:"outcome,omitempty"`
	Product     string    `json:"product,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a final state.
func (j JobStatus) Done() bool {
	return j.Status == JobComplete || j.Status == JobError
}

// DefaultJobRetention is how long finished jobs stay queryable.
const DefaultJobRetention = 15 * time.Minute

// JobTracker keeps relay jobs in memory and fans out updates to subscribers.
// Finished jobs are evicted once they are older than the retention window.
type JobTracker struct {
	mu        sync.RWMutex
	jobs      map[string]*JobStatus
	subs      map[string][]chan JobStatus
	retention time.Duration
	now       func() time.Time
}

// NewJobTracker creates a job tracker that keeps finished jobs for retention
// (DefaultJobRetention when retention <= 0).
func NewJobTracker(retention time.Duration) *JobTracker {
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	return &JobTracker{
		jobs:      make(map[string]*JobStatus),
		subs:      make(map[string][]chan JobStatus),
		retention: retention,
		now:       time.Now,
	}
}

// Create registers a running job.
func (t *JobTracker) Create(id, senderID, imageURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()
	t.jobs[id] = &JobStatus{
		ID:        id,
		SenderID:  senderID,
		ImageURL:  imageURL,
		Status:    JobRunning,
		StartedAt: t.now(),
	}
}

// Sweep evicts finished jobs past the retention window and returns how many
// were removed.
func (t *JobTracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

// Len returns the number of tracked jobs.
func (t *JobTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

func (t *JobTracker) sweepLocked() int {
	cutoff := t.now().Add(-t.retention)
	removed := 0
	for id, job := range t.jobs {
		if job.Done() && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}

func (t *JobTracker) expired(job *JobStatus) bool {
	return job.Done() && job.CompletedAt.Before(t.now().Add(-t.retention))
}

// Finish moves a job to a final state and notifies subscribers.
func (t *JobTracker) Finish(id, outcome, product string, err error) {
	t.mu.Lock()
	t.sweepLocked()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	job.Status = JobComplete
	job.Outcome = outcome
	job.Product = product
	if err != nil {
		job.Status = JobError
		job.Error = err.Error()
	}
	job.CompletedAt = t.now()
	snapshot := *job
	subs := t.subs[id]
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Get returns a copy of a job.
func (t *JobTracker) Get(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok || t.expired(job) {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Subscribe returns a channel that receives the job's final state.
func (t *JobTracker) Subscribe(id string) chan JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan JobStatus, 1)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (t *JobTracker) Unsubscribe(id string, ch chan JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
	close(ch)
}
