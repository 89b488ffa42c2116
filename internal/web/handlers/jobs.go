package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
)

// eventChannelBuffer bounds each SSE listener's queue; slow listeners
// drop events rather than stall the pipeline.
const eventChannelBuffer = 64

// JobStatus represents the status of an async comparison job.
type JobStatus string

// JobStatus constants define the lifecycle states of a comparison job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ComparisonJob tracks one in-flight comparison request.
type ComparisonJob struct {
	EventBroadcaster

	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      *compare.Result `json:"result,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ComparisonJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetRunning marks the job as running.
func (j *ComparisonJob) SetRunning() {
	j.mu.Lock()
	j.Status = JobStatusRunning
	j.mu.Unlock()
}

// Complete stores the finished result and marks the job done.
func (j *ComparisonJob) Complete(result *compare.Result) {
	now := time.Now()
	j.mu.Lock()
	if j.Status != JobStatusCancelled {
		j.Status = JobStatusCompleted
	}
	j.Result = result
	j.CompletedAt = &now
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "completed", Data: result})
}

// Snapshot returns a copy of the job safe for serialization.
func (j *ComparisonJob) Snapshot() ComparisonJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ComparisonJob{
		ID:          j.ID,
		Status:      j.Status,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
		Result:      j.Result,
	}
}

// Cancel cancels the comparison job.
func (j *ComparisonJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.mu.Lock()
	if j.Status == JobStatusPending || j.Status == JobStatusRunning {
		j.Status = JobStatusCancelled
	}
	j.mu.Unlock()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting
// for async jobs. Embed it in job structs to get AddListener,
// RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners without blocking.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async comparison jobs.
type JobManager struct {
	jobs map[string]*ComparisonJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ComparisonJob),
	}
}

// CreateJob registers a new comparison job. The returned cancel
// function aborts the job's pipeline run.
func (m *JobManager) CreateJob(id string) (*ComparisonJob, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &ComparisonJob{
		ID:        id,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	job.cancel = cancel

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job, ctx
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ComparisonJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}
