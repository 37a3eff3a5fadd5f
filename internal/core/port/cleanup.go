package port

import (
	"context"
	"time"
)

// CleanupService is service that handles cleanup
type CleanupService interface {
	// CleanupStaleChunks removes chunk objects older than now minus the configured age
	CleanupStaleChunks(ctx context.Context, now time.Time) (int, error)
}
