package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"policonv/internal/canonical"
	"policonv/internal/domain"
	"policonv/internal/port"
	"policonv/internal/service"
)

// MockJobService is a mock implementation of service.JobService.
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) CreateJob(ctx context.Context, input service.CreateJobInput) (*domain.Job, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) ListJobs(ctx context.Context, filter port.JobFilter) ([]domain.Job, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Job), args.Int(1), args.Error(2)
}

func (m *MockJobService) GetBundle(ctx context.Context, id uuid.UUID) (*canonical.Bundle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*canonical.Bundle), args.Error(1)
}

func (m *MockJobService) ExportBundleXLSX(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}
