package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"policonv/internal/domain"
	"policonv/internal/port"
)

type jobRepo struct {
	db *sqlx.DB
}

// NewJobRepo creates a new PostgreSQL-backed JobRepository.
func NewJobRepo(db *sqlx.DB) port.JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `INSERT INTO jobs
		(id, filename, content_type, storage_key, status, page_count,
		 document_categories, page_categories, confidence_mean, fields_mapped,
		 error_message, map_attempts, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Filename, job.ContentType, job.StorageKey, job.Status,
		job.PageCount, job.DocumentCategories, job.PageCategories,
		job.ConfidenceMean, job.FieldsMapped, job.ErrorMessage, job.MapAttempts,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("jobRepo.Create: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job, "SELECT * FROM jobs WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("jobRepo.GetByID: %w", err)
	}
	return &job, nil
}

func (r *jobRepo) List(ctx context.Context, filter port.JobFilter) ([]domain.Job, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var total int
	var jobs []domain.Job
	if filter.Status != nil {
		err := r.db.GetContext(ctx, &total,
			"SELECT COUNT(*) FROM jobs WHERE status = $1", *filter.Status)
		if err != nil {
			return nil, 0, fmt.Errorf("jobRepo.List count: %w", err)
		}
		err = r.db.SelectContext(ctx, &jobs,
			`SELECT * FROM jobs WHERE status = $1
			 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			*filter.Status, limit, filter.Offset)
		if err != nil {
			return nil, 0, fmt.Errorf("jobRepo.List: %w", err)
		}
		return jobs, total, nil
	}

	err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM jobs")
	if err != nil {
		return nil, 0, fmt.Errorf("jobRepo.List count: %w", err)
	}
	err = r.db.SelectContext(ctx, &jobs,
		"SELECT * FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("jobRepo.List: %w", err)
	}
	return jobs, total, nil
}

func (r *jobRepo) Update(ctx context.Context, job *domain.Job) error {
	job.UpdatedAt = time.Now().UTC()

	query := `UPDATE jobs SET
		status = $1, page_count = $2, document_categories = $3, page_categories = $4,
		confidence_mean = $5, fields_mapped = $6, error_message = $7,
		map_attempts = $8, updated_at = $9, completed_at = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		job.Status, job.PageCount, job.DocumentCategories, job.PageCategories,
		job.ConfidenceMean, job.FieldsMapped, job.ErrorMessage, job.MapAttempts,
		job.UpdatedAt, job.CompletedAt, job.ID)
	if err != nil {
		return fmt.Errorf("jobRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	// SKIP LOCKED keeps concurrent workers from claiming the same rows.
	query := `UPDATE jobs SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM jobs WHERE status = $3
			ORDER BY created_at ASC LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`

	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs, query,
		domain.JobStatusProcessing, time.Now().UTC(), domain.JobStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.ClaimQueued: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string, requeue bool) error {
	status := domain.JobStatusFailed
	var completedAt *time.Time
	if requeue {
		status = domain.JobStatusQueued
	} else {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `UPDATE jobs SET
		status = $1, error_message = $2, map_attempts = map_attempts + 1,
		updated_at = $3, completed_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		status, message, time.Now().UTC(), completedAt, id)
	if err != nil {
		return fmt.Errorf("jobRepo.MarkFailed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
