package upload

import (
	"context"
	"io"
	"lms-media/internal/core/domain"
	"lms-media/internal/observability"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scheduler runs a bounded number of worker loops over a session's chunk plan
type Scheduler struct {
	worker      *ChunkWorker
	concurrency int
	interval    time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewScheduler creates a scheduler sampling progress every interval
func NewScheduler(worker *ChunkWorker, concurrency int, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		worker:      worker,
		concurrency: max(concurrency, 1),
		interval:    interval,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Run uploads every chunk of the session. It fails fast: after the first permanently failed chunk no new
// chunk is claimed, in-flight chunks finish and are not accounted. Run returns once every loop has stopped.
// A cancelled session returns domain.ErrUploadCancelled. onProgress may be nil.
func (s *Scheduler) Run(ctx context.Context, session *Session, src io.ReaderAt, contentType string, onProgress func(domain.TransferProgress)) error {
	total := session.Info().SourceFileSize
	loops := min(s.concurrency, len(session.chunks))

	stopWake := context.AfterFunc(ctx, session.wake)
	defer stopWake()

	var samplerWG sync.WaitGroup
	samplerDone := make(chan struct{})
	if onProgress != nil {
		samplerWG.Add(1)
		go func() {
			defer samplerWG.Done()
			s.sample(session, total, onProgress, samplerDone)
		}()
	}

	var g errgroup.Group
	for i := 0; i < loops; i++ {
		g.Go(func() error {
			return s.loop(ctx, session, src, contentType)
		})
	}
	err := g.Wait()

	close(samplerDone)
	samplerWG.Wait()

	switch {
	case session.Cancelled():
		return domain.ErrUploadCancelled
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return err
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, session *Session, src io.ReaderAt, contentType string) error {
	done := func() bool { return ctx.Err() != nil }
	for session.awaitClaim(done) {
		idx, ok := session.claim()
		if !ok {
			return nil
		}
		chunk, key := session.chunk(idx)

		attempts, err := s.worker.Upload(ctx, src, chunk, key, contentType)
		if err != nil {
			session.markFailed(idx, attempts)
			s.logger.Error("chunk upload failed",
				"session_id", session.info.ID,
				"chunk", idx,
				"attempts", attempts,
				"error", err,
			)
			return err
		}
		if session.markUploaded(idx, attempts) {
			s.metrics.ChunkUploaded(chunk.Size())
		}
	}
	return nil
}

func (s *Scheduler) sample(session *Session, total int64, onProgress func(domain.TransferProgress), done <-chan struct{}) {
	meter := NewTransferMeter(total, s.now())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			onProgress(meter.Sample(session.BytesTransferred(), s.now()))
		case <-done:
			onProgress(meter.Sample(session.BytesTransferred(), s.now()))
			return
		}
	}
}
