package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"policonv/internal/canonical"
	"policonv/internal/config"
	"policonv/internal/domain"
	"policonv/internal/extractor"
	"policonv/internal/mapping"
	"policonv/internal/port"
	"policonv/internal/tablegroup"
)

// MappingService runs the canonical mapping pipeline for one job: extraction
// (when needed), table grouping, deterministic reconciliation, optional LLM
// gap filling, and snapshot persistence.
type MappingService interface {
	// MapJob runs the pipeline for a job already in processing state. Errors
	// are recorded on the job, not returned; the worker has nothing to do
	// with them.
	MapJob(ctx context.Context, job *domain.Job, maxAttempts int)
	// TriggerMapping claims a specific job and runs the pipeline inline.
	TriggerMapping(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

type mappingService struct {
	jobRepo       port.JobRepository
	snapshots     port.SnapshotRepository
	storage       port.ObjectStorage
	visionExt     port.VisionExtractor
	mappingClient port.MappingClient
	mapper        *canonical.Mapper
	s3cfg         config.S3Config
	maxAttempts   int
}

// NewMappingService creates a MappingService. mappingClient may be nil, in
// which case the deterministic bundle ships as-is.
func NewMappingService(
	jobRepo port.JobRepository,
	snapshots port.SnapshotRepository,
	storage port.ObjectStorage,
	visionExt port.VisionExtractor,
	mappingClient port.MappingClient,
	s3cfg config.S3Config,
	maxAttempts int,
) MappingService {
	return &mappingService{
		jobRepo:       jobRepo,
		snapshots:     snapshots,
		storage:       storage,
		visionExt:     visionExt,
		mappingClient: mappingClient,
		mapper:        canonical.NewMapper(),
		s3cfg:         s3cfg,
		maxAttempts:   maxAttempts,
	}
}

func (s *mappingService) TriggerMapping(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case domain.JobStatusQueued:
		if err := job.Transition(domain.JobStatusProcessing); err != nil {
			return nil, err
		}
	case domain.JobStatusFailed:
		// Re-run after failure: back through queued to processing.
		if err := job.Transition(domain.JobStatusQueued); err != nil {
			return nil, err
		}
		job.CompletedAt = nil
		job.ErrorMessage = ""
		if err := job.Transition(domain.JobStatusProcessing); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotMappable, job.ID, job.Status)
	}

	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}

	job.MapAttempts++
	s.MapJob(ctx, job, s.maxAttempts)
	return s.jobRepo.GetByID(ctx, id)
}

func (s *mappingService) MapJob(ctx context.Context, job *domain.Job, maxAttempts int) {
	pages, err := s.loadOrExtractPages(ctx, job)
	if err != nil {
		s.failMapping(ctx, job, err, maxAttempts)
		return
	}
	if len(pages) == 0 {
		s.failMapping(ctx, job, fmt.Errorf("%w: job has no extracted pages", domain.ErrValidation), maxAttempts)
		return
	}

	groups := tablegroup.AssignTableGroups(pages)
	merged := tablegroup.MergeTableSegments(groups)

	deterministic := s.mapper.MapDocument(pages, job.Categories(), job.PerPageCategories())

	if err := job.Transition(domain.JobStatusMapping); err != nil {
		s.failMapping(ctx, job, err, maxAttempts)
		return
	}
	if err := s.jobRepo.Update(ctx, job); err != nil {
		log.Printf("mappingService.MapJob: failed to save status for %s: %v", job.ID, err)
		return
	}

	bundle := deterministic
	trace := map[string]any{
		"deterministic": deterministic,
	}

	if s.mappingClient != nil {
		payload := mapping.BuildPayload(mapping.PayloadInput{
			JobID:              job.ID.String(),
			Filename:           job.Filename,
			DocumentCategories: job.Categories(),
			PageCategories:     job.PerPageCategories(),
			Pages:              pages,
			MergedTables:       merged,
		})
		payloadJSON, merr := json.Marshal(payload)
		if merr != nil {
			s.failMapping(ctx, job, fmt.Errorf("marshaling payload: %w", merr), maxAttempts)
			return
		}

		resp, merr := s.mappingClient.GenerateBundle(ctx, port.MappingRequest{
			Deterministic: deterministic,
			Payload:       payloadJSON,
		})
		if merr != nil {
			s.failMapping(ctx, job, merr, maxAttempts)
			return
		}

		bundle = mapping.MergeBundles(deterministic, resp.Bundle)
		trace["response"] = resp.RawResponse
		trace["model"] = resp.ModelUsed
	} else {
		bundle = mapping.MergeBundles(deterministic, nil)
	}

	if err := s.snapshots.SaveBundle(ctx, job.ID, bundle); err != nil {
		s.failMapping(ctx, job, err, maxAttempts)
		return
	}
	if traceJSON, terr := json.Marshal(trace); terr == nil {
		if err := s.snapshots.SaveTrace(ctx, job.ID, traceJSON); err != nil {
			// Trace persistence is best effort.
			log.Printf("mappingService.MapJob: failed to save trace for %s: %v", job.ID, err)
		}
	}

	fieldsMapped, confidenceMean := bundleMetrics(bundle)
	job.FieldsMapped = fieldsMapped
	job.ConfidenceMean = confidenceMean
	job.PageCount = len(pages)
	job.ErrorMessage = ""

	if err := job.Transition(domain.JobStatusCompleted); err != nil {
		s.failMapping(ctx, job, err, maxAttempts)
		return
	}
	if err := s.jobRepo.Update(ctx, job); err != nil {
		log.Printf("mappingService.MapJob: failed to save results for %s: %v", job.ID, err)
		return
	}

	log.Printf("mappingService.MapJob: job %s mapped (%d fields, %d pages)",
		job.ID, fieldsMapped, len(pages))
}

// loadOrExtractPages returns the job's page observations, running vision
// extraction against the stored document when no pages snapshot exists yet.
func (s *mappingService) loadOrExtractPages(ctx context.Context, job *domain.Job) ([]domain.PageExtraction, error) {
	pages, err := s.snapshots.LoadPages(ctx, job.ID)
	if err == nil {
		return pages, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if job.StorageKey == "" || s.visionExt == nil {
		return nil, fmt.Errorf("%w: no pages snapshot and no stored document", domain.ErrNotFound)
	}

	fileBytes, err := s.storage.Download(ctx, s.s3cfg.Bucket, job.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("downloading document: %w", err)
	}

	out, err := s.visionExt.ExtractPages(ctx, port.ExtractInput{
		FileBytes:    fileBytes,
		ContentType:  job.ContentType,
		DocumentType: documentTypeHint(job),
	})
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.SavePages(ctx, job.ID, out.Pages); err != nil {
		return nil, fmt.Errorf("saving pages snapshot: %w", err)
	}
	return out.Pages, nil
}

// failMapping records a failure, requeueing while under the attempt budget.
// Rate limits always requeue so the retry lands after the backoff window.
func (s *mappingService) failMapping(ctx context.Context, job *domain.Job, cause error, maxAttempts int) {
	var rlErr *extractor.RateLimitError
	rateLimited := errors.As(cause, &rlErr)
	requeue := rateLimited || job.MapAttempts < maxAttempts

	if rateLimited {
		log.Printf("mappingService.MapJob: job %s rate limited, retry after %s", job.ID, rlErr.RetryAfter)
	} else {
		log.Printf("mappingService.MapJob: job %s failed (attempt %d/%d): %v",
			job.ID, job.MapAttempts, maxAttempts, cause)
	}

	if err := s.jobRepo.MarkFailed(ctx, job.ID, cause.Error(), requeue); err != nil {
		log.Printf("mappingService.MapJob: failed to record failure for %s: %v", job.ID, err)
	}
}

func documentTypeHint(job *domain.Job) string {
	categories := job.Categories()
	if len(categories) > 0 {
		return categories[0]
	}
	return "policy conversion"
}

// bundleMetrics summarizes a bundle for the job row: how many canonical
// fields hold a value, and the mean confidence over those fields.
func bundleMetrics(bundle *canonical.Bundle) (int, *float64) {
	mapped := 0
	var samples []float64
	for _, entry := range bundle.PolicyConversion {
		if entry == nil || !entry.HasValue() {
			continue
		}
		mapped++
		if entry.Confidence != nil {
			samples = append(samples, *entry.Confidence)
		}
	}
	if len(samples) == 0 {
		return mapped, nil
	}
	mean := domain.MeanConfidence(samples)
	return mapped, &mean
}
