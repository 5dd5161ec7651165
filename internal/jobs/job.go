package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusError    Status = "error"
)

// Job mirrors the progress of one discovery run for polling clients.
type Job struct {
	ID       string    `json:"id"`
	Status   Status    `json:"status"`
	Percent  int       `json:"percent"`
	Message  string    `json:"message,omitempty"`
	Result   any       `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
	ArtistID string    `json:"artist_id"`
	TrackID  string    `json:"track_id,omitempty"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`

	cancel context.CancelFunc
}

// Done reports whether the job reached a final status.
func (j Job) Done() bool { return j.Status == StatusFinished || j.Status == StatusError }

// Manager manages all jobs in-memory.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*Job)}
}

// CreateJob allocates a new Job with a unique ID and stores it.
func (m *Manager) CreateJob(artistID, trackID string) Job {
	now := time.Now()
	j := &Job{
		ID:       uuid.NewString(),
		Status:   StatusPending,
		ArtistID: artistID,
		TrackID:  trackID,
		Created:  now,
		Updated:  now,
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.mu.Unlock()

	return *j
}

// Update atomically updates a job, if it exists.
func (m *Manager) Update(id string, fn func(*Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	job.Updated = time.Now()
	return true
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	cp := *job
	cp.cancel = nil
	return cp, true
}

func (m *Manager) SetCancel(id string, cancel context.CancelFunc) {
	m.Update(id, func(j *Job) { j.cancel = cancel })
}

// Cancel stops a running job. It reports false for unknown or finished jobs.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	job, ok := m.jobs[id]
	var cancel context.CancelFunc
	if ok && !job.Done() {
		cancel = job.cancel
	}
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Prune drops finished jobs last updated before cutoff.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, j := range m.jobs {
		if j.Done() && j.Updated.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}
