package upload

import (
	"context"
	"io"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"lms-media/internal/observability"
	"log/slog"
	"time"

	"github.com/bitrise-io/go-utils/retry"
)

const chunkContentType = "application/octet-stream"

// ChunkWorker writes one byte range to object storage, retrying the same key on failure
type ChunkWorker struct {
	storage        port.ObjectStorage
	maxRetries     uint
	retryWait      time.Duration
	attemptTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewChunkWorker creates a worker making at most 1+maxRetries attempts per chunk
func NewChunkWorker(storage port.ObjectStorage, maxRetries uint, retryWait, attemptTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ChunkWorker {
	return &ChunkWorker{
		storage:        storage,
		maxRetries:     maxRetries,
		retryWait:      retryWait,
		attemptTimeout: attemptTimeout,
		logger:         logger,
		metrics:        metrics,
	}
}

// Upload writes the chunk's range of src to key. It returns the number of attempts made.
// After the retry budget is spent the error is a *domain.ChunkUploadError; a cancelled ctx stops retrying
// and returns ctx.Err().
func (w *ChunkWorker) Upload(ctx context.Context, src io.ReaderAt, chunk domain.Chunk, key string, contentType string) (int, error) {
	var attempts int
	var lastErr error

	// the wait between attempts is done here so that cancelling ctx interrupts it
	err := retry.Times(w.maxRetries).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			if waitErr := w.wait(ctx); waitErr != nil {
				return waitErr, true
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr, true
		}
		attempts++

		lastErr = w.put(ctx, src, chunk, key, contentType)
		w.metrics.ChunkAttempt(lastErr == nil, attempt > 0)
		if lastErr == nil {
			return nil, false
		}

		w.logger.Warn("chunk upload attempt failed",
			"chunk", chunk.Index,
			"key", key,
			"attempt", attempt+1,
			"error", lastErr,
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr, true
		}
		return lastErr, false
	})
	if err == nil {
		return attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, ctxErr
	}

	return attempts, &domain.ChunkUploadError{Index: chunk.Index, Attempts: attempts, Err: lastErr}
}

func (w *ChunkWorker) wait(ctx context.Context) error {
	if w.retryWait <= 0 {
		return nil
	}
	timer := time.NewTimer(w.retryWait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ChunkWorker) put(ctx context.Context, src io.ReaderAt, chunk domain.Chunk, key string, contentType string) error {
	if w.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.attemptTimeout)
		defer cancel()
	}
	if contentType == "" {
		contentType = chunkContentType
	}

	body := io.NewSectionReader(src, chunk.ByteStart, chunk.Size())
	return w.storage.PutObject(ctx, key, body, chunk.Size(), contentType)
}
