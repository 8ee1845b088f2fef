package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"policonv/internal/canonical"
	"policonv/internal/config"
	"policonv/internal/domain"
	"policonv/internal/extractor"
	"policonv/internal/port"
	"policonv/internal/service"
	"policonv/mocks"
)

type mappingFixture struct {
	jobRepo   *mocks.MockJobRepo
	snapshots *mocks.MockSnapshotRepo
	storage   *mocks.MockDocumentStore
	visionExt *mocks.MockVisionExtractor
	client    *mocks.MockMappingClient
}

func newMappingService(f *mappingFixture, client port.MappingClient) service.MappingService {
	return service.NewMappingService(
		f.jobRepo, f.snapshots, f.storage, f.visionExt, client,
		config.S3Config{Bucket: "policonv-docs", MaxFileSizeMB: 10}, 3,
	)
}

func newMappingFixture() *mappingFixture {
	return &mappingFixture{
		jobRepo:   new(mocks.MockJobRepo),
		snapshots: new(mocks.MockSnapshotRepo),
		storage:   new(mocks.MockDocumentStore),
		visionExt: new(mocks.MockVisionExtractor),
		client:    new(mocks.MockMappingClient),
	}
}

func queuedJob() *domain.Job {
	return &domain.Job{
		ID:          uuid.New(),
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		Status:      domain.JobStatusQueued,
	}
}

func extractedPages() []domain.PageExtraction {
	return []domain.PageExtraction{
		{PageNumber: 1, Fields: []domain.FieldExtraction{
			{ID: "f-1", FieldName: "Policy number", Value: "POL-1", Confidence: 0.9, PageNumber: 1},
			{ID: "f-2", FieldName: "Total amount", Value: "1,250.00", Confidence: 0.8, PageNumber: 1},
		}},
	}
}

func TestTriggerMapping_CompletesJob(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, nil)
	job := queuedJob()

	f.jobRepo.On("GetByID", mock.Anything, job.ID).Return(job, nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)
	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return(extractedPages(), nil)

	var saved *canonical.Bundle
	f.snapshots.On("SaveBundle", mock.Anything, job.ID, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*canonical.Bundle) }).
		Return(nil)
	f.snapshots.On("SaveTrace", mock.Anything, job.ID, mock.Anything).Return(nil)

	result, err := svc.TriggerMapping(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Equal(t, 2, result.FieldsMapped)
	require.NotNil(t, result.ConfidenceMean)
	assert.InEpsilon(t, 0.85, *result.ConfidenceMean, 1e-9)
	assert.Equal(t, 1, result.PageCount)

	require.NotNil(t, saved)
	assert.Equal(t, "POL-1", saved.PolicyConversion["Policy number"].Value)
	f.jobRepo.AssertExpectations(t)
	f.snapshots.AssertExpectations(t)
}

func TestTriggerMapping_ModelFillsGaps(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, f.client)
	job := queuedJob()

	f.jobRepo.On("GetByID", mock.Anything, job.ID).Return(job, nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)
	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return(extractedPages(), nil)

	llm := canonical.NewMapper().BuildEmptyBundle(nil)
	conf := 0.75
	llm.PolicyConversion["Provider name"].Value = "Sunrise Care LLC"
	llm.PolicyConversion["Provider name"].Confidence = &conf
	f.client.On("GenerateBundle", mock.Anything, mock.MatchedBy(func(req port.MappingRequest) bool {
		return req.Deterministic != nil && len(req.Payload) > 0
	})).Return(&port.MappingResponse{Bundle: llm, RawResponse: "{}", ModelUsed: "claude-sonnet-4-20250514"}, nil)

	var saved *canonical.Bundle
	f.snapshots.On("SaveBundle", mock.Anything, job.ID, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*canonical.Bundle) }).
		Return(nil)
	f.snapshots.On("SaveTrace", mock.Anything, job.ID, mock.Anything).Return(nil)

	result, err := svc.TriggerMapping(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	require.NotNil(t, saved)
	// Deterministic value stands, the model fills the gap.
	assert.Equal(t, "POL-1", saved.PolicyConversion["Policy number"].Value)
	assert.Equal(t, "Sunrise Care LLC", saved.PolicyConversion["Provider name"].Value)
	f.client.AssertExpectations(t)
}

func TestTriggerMapping_CompletedJobIsNotMappable(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, nil)
	job := queuedJob()
	job.Status = domain.JobStatusCompleted

	f.jobRepo.On("GetByID", mock.Anything, job.ID).Return(job, nil)

	_, err := svc.TriggerMapping(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotMappable)
	f.jobRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTriggerMapping_FailedJobRequeuesThroughQueued(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, nil)
	job := queuedJob()
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = "previous failure"

	f.jobRepo.On("GetByID", mock.Anything, job.ID).Return(job, nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)
	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return(extractedPages(), nil)
	f.snapshots.On("SaveBundle", mock.Anything, job.ID, mock.Anything).Return(nil)
	f.snapshots.On("SaveTrace", mock.Anything, job.ID, mock.Anything).Return(nil)

	result, err := svc.TriggerMapping(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, result.Status)
	assert.Empty(t, result.ErrorMessage)
}

func TestMapJob_NoPagesFails(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, nil)
	job := queuedJob()
	job.Status = domain.JobStatusProcessing
	job.MapAttempts = 1

	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return([]domain.PageExtraction{}, nil)
	f.jobRepo.On("MarkFailed", mock.Anything, job.ID, mock.Anything, true).Return(nil)

	svc.MapJob(context.Background(), job, 3)

	f.jobRepo.AssertExpectations(t)
}

func TestMapJob_AttemptsExhaustedNoRequeue(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, nil)
	job := queuedJob()
	job.Status = domain.JobStatusProcessing
	job.MapAttempts = 3

	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return(nil, errors.New("disk gone"))
	f.jobRepo.On("MarkFailed", mock.Anything, job.ID, mock.Anything, false).Return(nil)

	svc.MapJob(context.Background(), job, 3)

	f.jobRepo.AssertExpectations(t)
}

func TestMapJob_RateLimitAlwaysRequeues(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, f.client)
	job := queuedJob()
	job.Status = domain.JobStatusProcessing
	job.MapAttempts = 5

	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return(extractedPages(), nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)
	f.client.On("GenerateBundle", mock.Anything, mock.Anything).
		Return(nil, extractor.NewRateLimitError("anthropic", errors.New("429"), 30))
	f.jobRepo.On("MarkFailed", mock.Anything, job.ID, mock.Anything, true).Return(nil)

	svc.MapJob(context.Background(), job, 3)

	f.jobRepo.AssertExpectations(t)
}

func TestMapJob_ExtractsWhenNoPagesSnapshot(t *testing.T) {
	f := newMappingFixture()
	svc := newMappingService(f, nil)
	job := queuedJob()
	job.Status = domain.JobStatusProcessing
	job.StorageKey = "uploads/abc/invoice.pdf"
	job.MapAttempts = 1

	f.snapshots.On("LoadPages", mock.Anything, job.ID).Return(nil, domain.ErrNotFound)
	f.storage.On("Download", mock.Anything, "policonv-docs", job.StorageKey).
		Return([]byte("%PDF-1.4"), nil)
	f.visionExt.On("ExtractPages", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.ContentType == "application/pdf" && len(in.FileBytes) > 0
	})).Return(&port.ExtractOutput{Pages: extractedPages(), ModelUsed: "claude-sonnet-4-20250514"}, nil)
	f.snapshots.On("SavePages", mock.Anything, job.ID, mock.Anything).Return(nil)
	f.jobRepo.On("Update", mock.Anything, job).Return(nil)
	f.snapshots.On("SaveBundle", mock.Anything, job.ID, mock.Anything).Return(nil)
	f.snapshots.On("SaveTrace", mock.Anything, job.ID, mock.Anything).Return(nil)

	svc.MapJob(context.Background(), job, 3)

	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	f.visionExt.AssertExpectations(t)
	f.snapshots.AssertExpectations(t)
}
