package port

import (
	"context"
	"lms-media/internal/core/domain"

	"github.com/google/uuid"
)

// ProgressRepository is an interface to define video_progress table interactions
type ProgressRepository interface {
	// Upsert applies p unless a newer client write is already stored. It reports whether the row changed.
	Upsert(ctx context.Context, p domain.VideoProgress) (bool, error)
	Find(ctx context.Context, userID string, videoID uuid.UUID) (*domain.VideoProgress, error)
}

// ProgressService is an interface to define server side progress handling
type ProgressService interface {
	// Record stores the report synchronously or queues it. queued is true when it was published.
	Record(ctx context.Context, userID string, report domain.ProgressReport) (queued bool, err error)
	Get(ctx context.Context, userID string, videoID uuid.UUID) (*domain.VideoProgress, error)
}

// ProgressReporter is the persistence collaborator the playback tracker writes to
type ProgressReporter interface {
	Report(ctx context.Context, report domain.ProgressReport) error
}

// ProgressLoader fetches the last known progress when a player opens a video
type ProgressLoader interface {
	Load(ctx context.Context, videoID uuid.UUID) (*domain.VideoProgress, error)
}
