package jobs

import (
	"context"
	"sync"

	"github.com/agentstation/recon/pkg/errors"
)

// Default list paging.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Store persists jobs. Implementations must be safe for concurrent use and
// must never hand out state shared with their own copy.
type Store interface {
	// Create stores job, assigning an id when it has none, and returns the id.
	Create(ctx context.Context, job *Job) (string, error)

	// Get returns the job with id, or a NotFoundError.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns jobs in creation order.
	List(ctx context.Context, limit, offset int) (Page, error)

	// Counts returns totals across the stored history.
	Counts(ctx context.Context) (Counts, error)

	// Close releases resources held by the store.
	Close() error
}

// NormalizePage clamps paging arguments: a non-positive limit becomes the
// default, limits above the maximum are capped, and negative offsets become 0.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// MemoryStore keeps jobs in process memory. Writes are serialized; reads
// run concurrently.
type MemoryStore struct {
	mu        sync.RWMutex
	order     []string
	jobs      map[string]*Job
	retention int
	completed int
	failed    int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithRetention bounds how many jobs are kept; the oldest are evicted first.
// Zero keeps every job.
func WithRetention(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n < 0 {
			n = 0
		}
		s.retention = n
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{jobs: make(map[string]*Job)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, job *Job) (string, error) {
	if job == nil {
		return "", errors.NewValidationError("job", nil, "cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := job.Clone()
	if stored.ID == "" {
		stored.ID = NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[stored.ID]; exists {
		return "", errors.WrapResource("create", "job", stored.ID, errors.ErrAlreadyExists)
	}
	s.jobs[stored.ID] = stored
	s.order = append(s.order, stored.ID)

	if s.retention > 0 && len(s.order) > s.retention {
		evict := len(s.order) - s.retention
		for _, id := range s.order[:evict] {
			delete(s.jobs, id)
		}
		s.order = append([]string(nil), s.order[evict:]...)
	}

	switch stored.Status {
	case StatusCompleted:
		s.completed++
	case StatusFailed:
		s.failed++
	}

	return stored.ID, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("reconciliation", id)
	}
	return job.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, limit, offset int) (Page, error) {
	limit, offset = NormalizePage(limit, offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	page := Page{Jobs: []Summary{}, Total: len(s.order), Limit: limit, Offset: offset}
	if offset >= len(s.order) {
		return page, nil
	}
	end := min(offset+limit, len(s.order))
	for _, id := range s.order[offset:end] {
		page.Jobs = append(page.Jobs, s.jobs[id].Summary())
	}
	return page, nil
}

// Counts implements Store. Evicted jobs still count toward the totals.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Total:     s.completed + s.failed,
		Completed: s.completed,
		Failed:    s.failed,
	}, nil
}

// Len returns the number of retained jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
