package recon

import (
	"sync"

	"github.com/agentstation/recon/pkg/jobs"
)

// Hook function types for job events
type (
	// JobCompletedHook is called after a completed job is stored
	JobCompletedHook func(job jobs.Job)

	// JobFailedHook is called after a failed job is stored
	JobFailedHook func(job jobs.Job)
)

// hooks manages event callbacks for job outcomes
type hooks struct {
	mu             sync.RWMutex
	onJobCompleted []JobCompletedHook
	onJobFailed    []JobFailedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnJobCompleted registers a callback for completed jobs
func (h *hooks) OnJobCompleted(fn JobCompletedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJobCompleted = append(h.onJobCompleted, fn)
}

// OnJobFailed registers a callback for failed jobs
func (h *hooks) OnJobFailed(fn JobFailedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJobFailed = append(h.onJobFailed, fn)
}

// triggerJob fires the hooks matching the job's status. Each hook gets
// its own copy of the job.
func (h *hooks) triggerJob(job *jobs.Job) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch job.Status {
	case jobs.StatusCompleted:
		for _, hook := range h.onJobCompleted {
			hook(*job.Clone())
		}
	case jobs.StatusFailed:
		for _, hook := range h.onJobFailed {
			hook(*job.Clone())
		}
	}
}
