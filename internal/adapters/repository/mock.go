package repository

import (
	"context"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockVideoRepository struct {
	mock.Mock
}

func NewMockVideoRepository() *MockVideoRepository {
	return &MockVideoRepository{}
}

func (m *MockVideoRepository) Create(ctx context.Context, video domain.VideoRecord) error {
	args := m.Called(ctx, video)
	return args.Error(0)
}

func (m *MockVideoRepository) NextOrderIndex(ctx context.Context, courseID uuid.UUID) (int, error) {
	args := m.Called(ctx, courseID)
	return args.Int(0), args.Error(1)
}

func (m *MockVideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.VideoRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoRecord), args.Error(1)
}

type MockProgressRepository struct {
	mock.Mock
}

func NewMockProgressRepository() *MockProgressRepository {
	return &MockProgressRepository{}
}

func (m *MockProgressRepository) Upsert(ctx context.Context, p domain.VideoProgress) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockProgressRepository) Find(ctx context.Context, userID string, videoID uuid.UUID) (*domain.VideoProgress, error) {
	args := m.Called(ctx, userID, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoProgress), args.Error(1)
}

type MockUnitOfWork struct {
	mock.Mock
	videoRepo    *MockVideoRepository
	progressRepo *MockProgressRepository
}

func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		videoRepo:    &MockVideoRepository{},
		progressRepo: &MockProgressRepository{},
	}
}

func (m *MockUnitOfWork) VideoRepo() port.VideoRepository {
	return m.videoRepo
}

func (m *MockUnitOfWork) ProgressRepo() port.ProgressRepository {
	return m.progressRepo
}

func (m *MockUnitOfWork) Execute(ctx context.Context, fn func(uow port.UnitOfWork) error) error {
	args := m.Called(ctx, fn)

	if err := fn(m); err != nil {
		return err
	}

	return args.Error(0)
}

func (m *MockUnitOfWork) GetVideoRepoMock() *MockVideoRepository {
	return m.videoRepo
}

func (m *MockUnitOfWork) GetProgressRepoMock() *MockProgressRepository {
	return m.progressRepo
}
