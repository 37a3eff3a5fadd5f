package video

import (
	"context"
	"fmt"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"time"

	"github.com/google/uuid"
)

const defaultURLTTL = time.Hour

type videoService struct {
	uow     port.UnitOfWork
	storage port.ObjectStorage
	urlTTL  time.Duration
	now     func() time.Time
}

// NewVideoService creates a new video service. Playback URLs stay valid for urlTTL.
func NewVideoService(uow port.UnitOfWork, storage port.ObjectStorage, urlTTL time.Duration) port.VideoService {
	if urlTTL <= 0 {
		urlTTL = defaultURLTTL
	}
	return &videoService{uow: uow, storage: storage, urlTTL: urlTTL, now: time.Now}
}

func (v *videoService) GetVideo(ctx context.Context, id uuid.UUID) (*domain.VideoPlayback, error) {
	record, err := v.uow.VideoRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := record.Metadata.StorageKey
	if key == "" {
		return nil, fmt.Errorf("video %s has no storage key", id)
	}

	issuedAt := v.now()
	url, err := v.storage.PresignedGetURL(ctx, key, v.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign playback url: %w", err)
	}

	return &domain.VideoPlayback{
		Video:     *record,
		URL:       url,
		ExpiresAt: issuedAt.Add(v.urlTTL).UTC(),
	}, nil
}
