package video

import (
	"context"
	"lms-media/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockVideoService is a mock implementation of VideoService
type MockVideoService struct {
	mock.Mock
}

// NewMockVideoService creates a new MockVideoService
func NewMockVideoService() *MockVideoService {
	return &MockVideoService{}
}

func (m *MockVideoService) GetVideo(ctx context.Context, id uuid.UUID) (*domain.VideoPlayback, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoPlayback), args.Error(1)
}
