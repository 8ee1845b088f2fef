package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"policonv/internal/port"
)

// MockMappingClient is a mock implementation of port.MappingClient.
type MockMappingClient struct {
	mock.Mock
}

func (m *MockMappingClient) GenerateBundle(ctx context.Context, req port.MappingRequest) (*port.MappingResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.MappingResponse), args.Error(1)
}
