package progress

import (
	"context"
	"errors"
	"lms-media/internal/core/domain"

	"github.com/google/uuid"
)

// Get returns the stored progress, or a zero state for a video never opened
func (p *progressService) Get(ctx context.Context, userID string, videoID uuid.UUID) (*domain.VideoProgress, error) {
	progress, err := p.uow.ProgressRepo().Find(ctx, userID, videoID)
	if err != nil {
		if errors.Is(err, domain.ErrProgressNotFound) {
			return &domain.VideoProgress{UserID: userID, VideoID: videoID}, nil
		}
		return nil, err
	}
	return progress, nil
}
