package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"spinshot/internal/domain"
)

// MemoryJobStore implements domain.JobStore with an in-process map. It is a
// volatile cache of recent job state, not a system of record: everything is
// lost when the process exits.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
	last time.Time
}

// NewMemoryJobStore creates an empty store using the wall clock.
func NewMemoryJobStore() *MemoryJobStore {
	return NewMemoryJobStoreWithClock(time.Now)
}

// NewMemoryJobStoreWithClock creates a store with an injectable clock so
// tests can control timestamps.
func NewMemoryJobStoreWithClock(now func() time.Time) *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*domain.Job),
		now:  now,
	}
}

// tick returns a timestamp strictly after every timestamp it handed out
// before, bumping by a nanosecond when the clock has not advanced. Callers
// must hold mu.
func (s *MemoryJobStore) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// Create inserts a new job record, assigning an ID when the caller left it
// empty, and stamps CreatedAt/UpdatedAt.
func (s *MemoryJobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.tick()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get fetches a job by identifier, returning domain.ErrNotFound when absent.
func (s *MemoryJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

// Update merges the patch into the stored record and refreshes UpdatedAt.
// Unknown ids are a no-op returning domain.ErrNotFound.
func (s *MemoryJobStore) Update(ctx context.Context, id string, patch domain.JobPatch) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if patch.HostedImageURL != nil {
		job.HostedImageURL = *patch.HostedImageURL
	}
	if patch.HostedExtraURLs != nil {
		job.HostedExtraURLs = append([]string(nil), patch.HostedExtraURLs...)
	}
	if patch.Description != nil {
		job.Description = *patch.Description
	}
	if patch.VideoPrompt != nil {
		job.VideoPrompt = *patch.VideoPrompt
	}
	if patch.VideoPayload != nil {
		job.VideoPayload = append([]byte(nil), patch.VideoPayload...)
	}
	if patch.VideoMIME != nil {
		job.VideoMIME = *patch.VideoMIME
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.FailureReason != nil {
		job.FailureReason = *patch.FailureReason
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	job.UpdatedAt = s.tick()
	return cloneJob(job), nil
}

// List returns all jobs ordered newest first.
func (s *MemoryJobStore) List(ctx context.Context) ([]*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// cloneJob deep-copies a record so callers never share slices with the store.
func cloneJob(in *domain.Job) *domain.Job {
	out := *in
	out.SourceImage = in.SourceImage.Clone()
	if in.AdditionalImages != nil {
		out.AdditionalImages = make([]domain.ImageRef, len(in.AdditionalImages))
		for i, ref := range in.AdditionalImages {
			out.AdditionalImages[i] = ref.Clone()
		}
	}
	if in.HostedExtraURLs != nil {
		out.HostedExtraURLs = append([]string(nil), in.HostedExtraURLs...)
	}
	if in.VideoPayload != nil {
		out.VideoPayload = append([]byte(nil), in.VideoPayload...)
	}
	return &out
}

var _ domain.JobStore = (*MemoryJobStore)(nil)
