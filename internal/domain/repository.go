package domain

import "context"

// JobStore defines persistence for job records. The shipped implementation
// is an in-process map; nothing survives a restart.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, patch JobPatch) (*Job, error)
	List(ctx context.Context) ([]*Job, error)
}
