package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"lms-media/internal/config"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"lms-media/internal/observability"
	"log/slog"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
)

// Manager owns upload sessions: it validates files, picks the strategy, drives the transfer and
// writes the single videos row of a successful upload.
type Manager struct {
	storage port.ObjectStorage
	uow     port.UnitOfWork
	cfg     config.UploadConfig
	logger  *slog.Logger
	metrics *observability.Metrics
	newID   func() uuid.UUID
	now     func() time.Time

	chunked *Scheduler
	direct  *Scheduler
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records upload metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithIDGenerator replaces uuid.New for session and video ids
func WithIDGenerator(f func() uuid.UUID) Option {
	return func(mgr *Manager) {
		mgr.newID = f
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) {
		mgr.now = now
	}
}

// NewManager creates an upload manager
func NewManager(storage port.ObjectStorage, uow port.UnitOfWork, cfg config.UploadConfig, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		storage: storage,
		uow:     uow,
		cfg:     cfg,
		logger:  logger,
		newID:   uuid.New,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	chunkWorker := NewChunkWorker(storage, cfg.MaxRetries, cfg.RetryWait, cfg.AttemptTimeout, logger, m.metrics)
	directWorker := NewChunkWorker(storage, cfg.MaxRetries, cfg.RetryWait, cfg.DirectTimeout, logger, m.metrics)
	m.chunked = NewScheduler(chunkWorker, cfg.Concurrency, cfg.ProgressInterval, logger, m.metrics)
	m.direct = NewScheduler(directWorker, 1, cfg.ProgressInterval, logger, m.metrics)
	return m
}

// Begin validates the file and creates a pending session with its full chunk plan.
// It makes no network call.
func (m *Manager) Begin(ctx context.Context, file domain.SourceFile) (*Session, error) {
	mimeType, err := m.validate(file)
	if err != nil {
		return nil, err
	}

	id := m.newID()
	info := domain.UploadSession{
		ID:             id,
		CourseID:       file.CourseID,
		Title:          file.Title,
		FileName:       file.FileName,
		MimeType:       mimeType,
		SourceFileSize: file.Size,
		Duration:       file.Duration,
		Status:         domain.UploadSessionStatusPending,
		ObjectKey:      fmt.Sprintf("course-%s/%s_%s", file.CourseID, id, objectName(file.FileName)),
		CreatedAt:      m.now(),
	}

	var chunks []domain.Chunk
	var keys []string
	if file.Size <= m.cfg.DirectThreshold.Int64() {
		info.Strategy = domain.UploadStrategyDirect
		info.ChunkSize = file.Size
		chunks = []domain.Chunk{{Index: 0, ByteStart: 0, ByteEnd: file.Size}}
		keys = []string{info.ObjectKey}
	} else {
		info.Strategy = domain.UploadStrategyChunked
		info.ChunkSize = m.cfg.ChunkSize.Int64()
		chunks, err = SplitChunks(file.Size, info.ChunkSize)
		if err != nil {
			return nil, err
		}
		keys = make([]string, len(chunks))
		for i := range chunks {
			keys[i] = ChunkKey(id, i)
		}
	}

	m.logger.InfoContext(ctx, "upload session created",
		"session_id", id,
		"strategy", info.Strategy,
		"size", units.HumanSize(float64(file.Size)),
		"chunks", len(chunks),
	)
	return newSession(info, chunks, keys), nil
}

// Transfer uploads the session's bytes from src. On failure or cancellation the objects written so far
// are deleted before the error is returned. Cancelling ctx aborts in-flight requests.
func (m *Manager) Transfer(ctx context.Context, s *Session, src io.ReaderAt, onProgress func(domain.TransferProgress)) error {
	if err := s.start(); err != nil {
		return err
	}
	info := s.Info()
	started := m.now()

	scheduler, contentType := m.chunked, ""
	if info.Strategy == domain.UploadStrategyDirect {
		scheduler, contentType = m.direct, info.MimeType
	}

	err := scheduler.Run(ctx, s, src, contentType, onProgress)
	s.finish(err == nil)
	if err == nil {
		m.logger.InfoContext(ctx, "upload transfer finished",
			"session_id", info.ID,
			"bytes", units.HumanSize(float64(s.BytesTransferred())),
			"elapsed", m.now().Sub(started).Round(time.Millisecond),
		)
		return nil
	}

	m.cleanup(context.WithoutCancel(ctx), s)

	if errors.Is(err, domain.ErrUploadCancelled) || errors.Is(err, context.Canceled) {
		m.terminate(s, domain.UploadSessionStatusCancelled, started)
		if errors.Is(err, domain.ErrUploadCancelled) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrUploadCancelled, err)
	}

	m.terminate(s, domain.UploadSessionStatusFailed, started)
	return fmt.Errorf("%w: %w", domain.ErrUploadFailed, err)
}

// Complete assembles chunked uploads and writes the videos row. If the row cannot be written the stored
// object is deleted and domain.ErrMetadataPersist is returned.
func (m *Manager) Complete(ctx context.Context, s *Session) (*domain.VideoRecord, error) {
	info := s.Info()
	if _, transferred := s.state(); !transferred || info.Status.IsTerminal() || !s.allUploaded() {
		return nil, fmt.Errorf("%w: %s session has not finished its transfer", domain.ErrInvalidSessionState, info.Status)
	}

	metadata := domain.VideoMetadata{
		SessionID:  info.ID,
		Chunked:    info.Strategy == domain.UploadStrategyChunked,
		TotalSize:  info.SourceFileSize,
		StorageKey: info.ObjectKey,
	}

	if metadata.Chunked {
		uploaded, _ := s.uploadedKeys()
		if err := m.storage.ComposeObject(ctx, info.ObjectKey, uploaded); err != nil {
			cleanupCtx := context.WithoutCancel(ctx)
			m.cleanup(cleanupCtx, s)
			m.remove(cleanupCtx, info.ID, []string{info.ObjectKey})
			m.terminate(s, domain.UploadSessionStatusFailed, info.CreatedAt)
			return nil, fmt.Errorf("%w: failed to assemble chunks: %w", domain.ErrUploadFailed, err)
		}
		metadata.TotalChunks = len(uploaded)
		metadata.ChunkSize = info.ChunkSize
		metadata.ChunkPrefix = ChunkPrefix(info.ID)
		m.remove(ctx, info.ID, uploaded)
	}

	video := domain.VideoRecord{
		ID:        m.newID(),
		CourseID:  info.CourseID,
		Title:     info.Title,
		FileURL:   m.storage.PublicURL(info.ObjectKey),
		FileSize:  info.SourceFileSize,
		MimeType:  info.MimeType,
		Duration:  info.Duration,
		Status:    domain.VideoStatusReady,
		Metadata:  metadata,
		CreatedAt: m.now(),
	}

	err := m.uow.Execute(ctx, func(uow port.UnitOfWork) error {
		orderIndex, err := uow.VideoRepo().NextOrderIndex(ctx, info.CourseID)
		if err != nil {
			return err
		}
		video.OrderIndex = orderIndex
		return uow.VideoRepo().Create(ctx, video)
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to persist video metadata, deleting stored object",
			"session_id", info.ID,
			"key", info.ObjectKey,
			"error", err,
		)
		m.remove(context.WithoutCancel(ctx), info.ID, []string{info.ObjectKey})
		m.terminate(s, domain.UploadSessionStatusFailed, info.CreatedAt)
		return nil, fmt.Errorf("%w: %w", domain.ErrMetadataPersist, err)
	}

	m.terminate(s, domain.UploadSessionStatusCompleted, info.CreatedAt)
	m.logger.InfoContext(ctx, "upload completed",
		"session_id", info.ID,
		"video_id", video.ID,
		"order_index", video.OrderIndex,
	)
	return &video, nil
}

// Abort cancels the session. A running transfer cleans up after its workers stop; otherwise the objects
// stored so far are deleted now. Deletion failures are logged, not returned.
func (m *Manager) Abort(ctx context.Context, s *Session) error {
	if s.Status() == domain.UploadSessionStatusCompleted {
		return fmt.Errorf("%w: cannot abort a completed session", domain.ErrInvalidSessionState)
	}

	s.Cancel()
	if running, _ := s.state(); running {
		return nil
	}

	m.cleanup(ctx, s)
	if !s.Status().IsTerminal() {
		m.terminate(s, domain.UploadSessionStatusCancelled, s.Info().CreatedAt)
	}
	return nil
}

// Upload runs Begin, Transfer and Complete
func (m *Manager) Upload(ctx context.Context, file domain.SourceFile, src io.ReaderAt, onProgress func(domain.TransferProgress)) (*domain.VideoRecord, error) {
	s, err := m.Begin(ctx, file)
	if err != nil {
		return nil, err
	}
	if err := m.Transfer(ctx, s, src, onProgress); err != nil {
		return nil, err
	}
	return m.Complete(ctx, s)
}

// cleanup deletes the chunks marked uploaded, then the chunks that finished after a failure
func (m *Manager) cleanup(ctx context.Context, s *Session) {
	uploaded, strays := s.uploadedKeys()
	id := s.Info().ID
	m.remove(ctx, id, uploaded)
	m.remove(ctx, id, strays)
}

func (m *Manager) remove(ctx context.Context, sessionID uuid.UUID, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := m.storage.RemoveObjects(ctx, keys); err != nil {
		m.logger.WarnContext(ctx, "failed to delete uploaded objects",
			"session_id", sessionID,
			"objects", len(keys),
			"error", err,
		)
	}
}

func (m *Manager) terminate(s *Session, status domain.UploadSessionStatus, since time.Time) {
	s.setStatus(status)
	m.metrics.SessionFinished(string(s.Info().Strategy), string(status), m.now().Sub(since).Seconds())
}
