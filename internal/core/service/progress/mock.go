package progress

import (
	"context"
	"lms-media/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProgressService is a mock implementation of ProgressService
type MockProgressService struct {
	mock.Mock
}

// NewMockProgressService creates a new MockProgressService
func NewMockProgressService() *MockProgressService {
	return &MockProgressService{}
}

func (m *MockProgressService) Record(ctx context.Context, userID string, report domain.ProgressReport) (bool, error) {
	args := m.Called(ctx, userID, report)
	return args.Bool(0), args.Error(1)
}

func (m *MockProgressService) Get(ctx context.Context, userID string, videoID uuid.UUID) (*domain.VideoProgress, error) {
	args := m.Called(ctx, userID, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoProgress), args.Error(1)
}
