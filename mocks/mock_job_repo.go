package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"policonv/internal/domain"
	"policonv/internal/port"
)

// MockJobRepo is a mock implementation of port.JobRepository.
type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobRepo) List(ctx context.Context, filter port.JobFilter) ([]domain.Job, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Job), args.Int(1), args.Error(2)
}

func (m *MockJobRepo) Update(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockJobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string, requeue bool) error {
	args := m.Called(ctx, id, message, requeue)
	return args.Error(0)
}
