package mocks

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"policonv/internal/canonical"
	"policonv/internal/domain"
)

// MockSnapshotRepo is a mock implementation of port.SnapshotRepository.
type MockSnapshotRepo struct {
	mock.Mock
}

func (m *MockSnapshotRepo) SavePages(ctx context.Context, jobID uuid.UUID, pages []domain.PageExtraction) error {
	args := m.Called(ctx, jobID, pages)
	return args.Error(0)
}

func (m *MockSnapshotRepo) LoadPages(ctx context.Context, jobID uuid.UUID) ([]domain.PageExtraction, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PageExtraction), args.Error(1)
}

func (m *MockSnapshotRepo) SaveBundle(ctx context.Context, jobID uuid.UUID, bundle *canonical.Bundle) error {
	args := m.Called(ctx, jobID, bundle)
	return args.Error(0)
}

func (m *MockSnapshotRepo) LoadBundle(ctx context.Context, jobID uuid.UUID) (*canonical.Bundle, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*canonical.Bundle), args.Error(1)
}

func (m *MockSnapshotRepo) SaveTrace(ctx context.Context, jobID uuid.UUID, trace json.RawMessage) error {
	args := m.Called(ctx, jobID, trace)
	return args.Error(0)
}
