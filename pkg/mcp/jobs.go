package mcp

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/img-relay/pkg/utils"
)

// JobStatus represents the current state of a prefetch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a background cache warm-up over a batch of image references
type Job struct {
	ID           string    `json:"id"`
	BatchKey     string    `json:"batch_key"`
	References   []string  `json:"references"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	Processed    int64     `json:"processed"`
	Failed       int64     `json:"failed"`
	ErrorMessage string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// Total is the number of references in the batch
func (j *Job) Total() int {
	return len(j.References)
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// BatchKey identifies a reference batch independent of order and whitespace.
func BatchKey(refs []string) string {
	cleaned := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	sort.Strings(cleaned)
	return utils.CalculateStringMD5(strings.Join(cleaned, "\n"))
}

// JobManager tracks prefetch jobs. Submitting a batch identical to one still
// running returns the running job.
type JobManager struct {
	jobs    map[string]*Job
	mu      sync.RWMutex
	byBatch map[string]string // batch key -> job ID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:    make(map[string]*Job),
		byBatch: make(map[string]string),
	}
}

// CreateJob registers a pending job for refs
func (m *JobManager) CreateJob(refs []string) *Job {
	key := BatchKey(refs)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byBatch[key]; ok {
		if existing := m.jobs[existingID]; existing != nil && existing.active() {
			return existing
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:         uuid.New().String(),
		BatchKey:   key,
		References: append([]string(nil), refs...),
		Status:     JobStatusPending,
		StartedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
	m.jobs[job.ID] = job
	m.byBatch[key] = job.ID
	return job
}

// GetJob returns a snapshot of the job, or nil
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// IsRunning reports whether an active job exists for the batch key
func (m *JobManager) IsRunning(batchKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if jobID, ok := m.byBatch[batchKey]; ok {
		job := m.jobs[jobID]
		return job != nil && job.active()
	}
	return false
}

// UpdateStatus moves a job to status. Terminal states release the batch key.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status == JobStatusCancelled {
		return
	}
	job.Status = status
	if !job.active() {
		job.CompletedAt = time.Now()
		delete(m.byBatch, job.BatchKey)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// RecordResult counts one finished reference
func (m *JobManager) RecordResult(jobID string, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[jobID]; ok {
		job.Processed++
		if failed {
			job.Failed++
		}
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.active() {
		return false
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = time.Now()
	delete(m.byBatch, job.BatchKey)
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.active() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byBatch = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the job's cancellation context
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, ok := m.jobs[jobID]; ok {
		return job.ctx
	}
	return context.Background()
}
