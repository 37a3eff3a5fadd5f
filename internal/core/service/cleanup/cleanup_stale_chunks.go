package cleanup

import (
	"context"
	"fmt"
	"lms-media/internal/core/service/upload"
	"time"
)

// CleanupStaleChunks deletes chunk objects left behind by uploads that never completed or cleaned up
func (c *cleanupService) CleanupStaleChunks(ctx context.Context, now time.Time) (int, error) {
	before := now.Add(-c.chunkMaxAge)

	keys, err := c.storage.ListObjectsOlderThan(ctx, upload.ChunksRoot, before)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale chunks: %w", err)
	}
	if len(keys) == 0 {
		c.logger.Debug("no stale chunks found", "before", before)
		return 0, nil
	}

	removed := 0
	for start := 0; start < len(keys); start += removeBatchSize {
		batch := keys[start:min(start+removeBatchSize, len(keys))]
		if err := c.storage.RemoveObjects(ctx, batch); err != nil {
			c.metrics.Swept(removed)
			return removed, fmt.Errorf("failed to remove stale chunks: %w", err)
		}
		removed += len(batch)
	}

	c.metrics.Swept(removed)
	c.logger.Info("stale chunks removed", "count", removed, "before", before)
	return removed, nil
}
