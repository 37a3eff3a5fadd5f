package port

import (
	"context"
	"lms-media/internal/core/domain"

	"github.com/google/uuid"
)

// VideoRepository is an interface to define videos table interactions
type VideoRepository interface {
	Create(ctx context.Context, video domain.VideoRecord) error
	NextOrderIndex(ctx context.Context, courseID uuid.UUID) (int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.VideoRecord, error)
}

// VideoService is an interface to define video lookups
type VideoService interface {
	GetVideo(ctx context.Context, id uuid.UUID) (*domain.VideoPlayback, error)
}
