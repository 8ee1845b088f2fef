package port

import (
	"context"

	"github.com/google/uuid"

	"policonv/internal/domain"
)

// JobFilter narrows job listings.
type JobFilter struct {
	Status *domain.JobStatus
	Offset int
	Limit  int
}

// JobRepository defines the contract for job persistence.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter JobFilter) ([]domain.Job, int, error)
	Update(ctx context.Context, job *domain.Job) error
	// ClaimQueued atomically moves up to limit queued jobs to processing and
	// returns them. Concurrent workers never claim the same job.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error)
	// MarkFailed records a failure message and either requeues the job or
	// fails it terminally depending on the attempt count.
	MarkFailed(ctx context.Context, id uuid.UUID, message string, requeue bool) error
}
