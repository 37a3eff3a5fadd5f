package cleanup

import (
	"lms-media/internal/core/port"
	"lms-media/internal/observability"
	"log/slog"
	"time"
)

const removeBatchSize = 1000

type cleanupService struct {
	storage     port.ObjectStorage
	chunkMaxAge time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewCleanupService creates a new cleanup service. Chunks older than chunkMaxAge are considered orphaned.
func NewCleanupService(storage port.ObjectStorage, chunkMaxAge time.Duration, logger *slog.Logger, metrics *observability.Metrics) port.CleanupService {
	return &cleanupService{
		storage:     storage,
		chunkMaxAge: chunkMaxAge,
		logger:      logger,
		metrics:     metrics,
	}
}
