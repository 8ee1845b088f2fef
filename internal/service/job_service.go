package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"policonv/internal/canonical"
	"policonv/internal/config"
	"policonv/internal/domain"
	"policonv/internal/port"
	"policonv/internal/xlsxexport"
)

// CreateJobInput carries everything needed to register a new job. Callers
// provide either the original document bytes, pre-extracted pages, or both.
type CreateJobInput struct {
	Filename           string
	ContentType        string
	FileBytes          []byte
	Pages              []domain.PageExtraction
	DocumentCategories []string
	PageCategories     map[int][]string
}

// JobService manages job registration, queries, and exports.
type JobService interface {
	CreateJob(ctx context.Context, input CreateJobInput) (*domain.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, filter port.JobFilter) ([]domain.Job, int, error)
	GetBundle(ctx context.Context, id uuid.UUID) (*canonical.Bundle, error)
	ExportBundleXLSX(ctx context.Context, id uuid.UUID) ([]byte, string, error)
}

type jobService struct {
	jobRepo   port.JobRepository
	snapshots port.SnapshotRepository
	storage   port.ObjectStorage
	s3cfg     config.S3Config
}

// NewJobService creates a JobService.
func NewJobService(jobRepo port.JobRepository, snapshots port.SnapshotRepository, storage port.ObjectStorage, s3cfg config.S3Config) JobService {
	return &jobService{
		jobRepo:   jobRepo,
		snapshots: snapshots,
		storage:   storage,
		s3cfg:     s3cfg,
	}
}

func (s *jobService) CreateJob(ctx context.Context, input CreateJobInput) (*domain.Job, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrValidation)
	}
	if len(input.FileBytes) == 0 && len(input.Pages) == 0 {
		return nil, fmt.Errorf("%w: either file content or extracted pages must be provided", domain.ErrValidation)
	}

	job := &domain.Job{
		ID:          uuid.New(),
		Filename:    input.Filename,
		ContentType: input.ContentType,
		Status:      domain.JobStatusQueued,
		PageCount:   len(input.Pages),
	}

	if len(input.DocumentCategories) > 0 {
		raw, err := json.Marshal(input.DocumentCategories)
		if err != nil {
			return nil, fmt.Errorf("jobService.CreateJob: encoding categories: %w", err)
		}
		job.DocumentCategories = raw
	}
	if len(input.PageCategories) > 0 {
		raw, err := json.Marshal(input.PageCategories)
		if err != nil {
			return nil, fmt.Errorf("jobService.CreateJob: encoding page categories: %w", err)
		}
		job.PageCategories = raw
	}

	if len(input.FileBytes) > 0 {
		if _, ok := domain.AllowedContentTypes[input.ContentType]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, input.ContentType)
		}
		maxBytes := s.s3cfg.MaxFileSizeMB * 1024 * 1024
		if maxBytes > 0 && int64(len(input.FileBytes)) > maxBytes {
			return nil, fmt.Errorf("%w: %d bytes exceeds %dMB limit",
				domain.ErrFileTooLarge, len(input.FileBytes), s.s3cfg.MaxFileSizeMB)
		}

		key := fmt.Sprintf("uploads/%s/%s", job.ID, input.Filename)
		_, err := s.storage.Upload(ctx, port.UploadInput{
			Bucket:      s.s3cfg.Bucket,
			Key:         key,
			Body:        bytes.NewReader(input.FileBytes),
			ContentType: input.ContentType,
			Size:        int64(len(input.FileBytes)),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
		}
		job.StorageKey = key
	}

	if len(input.Pages) > 0 {
		if err := s.snapshots.SavePages(ctx, job.ID, input.Pages); err != nil {
			return nil, fmt.Errorf("jobService.CreateJob: saving pages: %w", err)
		}
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	log.Printf("jobService.CreateJob: registered job %s (%s, %d pages)",
		job.ID, job.Filename, job.PageCount)
	return job, nil
}

func (s *jobService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.jobRepo.GetByID(ctx, id)
}

func (s *jobService) ListJobs(ctx context.Context, filter port.JobFilter) ([]domain.Job, int, error) {
	return s.jobRepo.List(ctx, filter)
}

func (s *jobService) GetBundle(ctx context.Context, id uuid.UUID) (*canonical.Bundle, error) {
	if _, err := s.jobRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.snapshots.LoadBundle(ctx, id)
}

func (s *jobService) ExportBundleXLSX(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	bundle, err := s.snapshots.LoadBundle(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := xlsxexport.Write(&buf, bundle); err != nil {
		return nil, "", fmt.Errorf("jobService.ExportBundleXLSX: %w", err)
	}

	base := strings.TrimSuffix(job.Filename, fileExt(job.Filename))
	filename := fmt.Sprintf("%s-policy-conversion-%s.xlsx", base, time.Now().UTC().Format("20060102"))
	return buf.Bytes(), filename, nil
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
