package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"policonv/internal/domain"
)

// MockMappingService is a mock implementation of service.MappingService.
type MockMappingService struct {
	mock.Mock
}

func (m *MockMappingService) MapJob(ctx context.Context, job *domain.Job, maxAttempts int) {
	m.Called(ctx, job, maxAttempts)
}

func (m *MockMappingService) TriggerMapping(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}
