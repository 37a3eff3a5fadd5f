package upload_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lms-media/internal/adapters/repository"
	"lms-media/internal/adapters/storage"
	"lms-media/internal/adapters/storage/memory"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/service/upload"
	"lms-media/internal/observability"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var courseID = uuid.MustParse("0b3c6a0e-5d0f-4a53-9d8e-3c1f3b0f6a11")

func TestManager_Begin_Validation(t *testing.T) {
	tests := []struct {
		name    string
		file    domain.SourceFile
		wantErr error
	}{
		{
			name:    "file above the size limit",
			file:    sourceFile(courseID, 3*units.GiB+1),
			wantErr: domain.ErrFileSizeTooBig,
		},
		{
			name:    "empty file",
			file:    sourceFile(courseID, 0),
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name: "mime type not allowed",
			file: func() domain.SourceFile {
				f := sourceFile(courseID, units.MiB)
				f.MimeType = "image/png"
				f.FileName = "slide.png"
				return f
			}(),
			wantErr: domain.ErrUnsupportedType,
		},
		{
			name: "extension does not match mime type",
			file: func() domain.SourceFile {
				f := sourceFile(courseID, units.MiB)
				f.FileName = "lecture.exe"
				return f
			}(),
			wantErr: domain.ErrUnsupportedType,
		},
		{
			name: "malformed content type",
			file: func() domain.SourceFile {
				f := sourceFile(courseID, units.MiB)
				f.MimeType = "video/"
				return f
			}(),
			wantErr: domain.ErrUnsupportedType,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			mockStorage := storage.NewMockStorage()
			uow := repository.NewMockUnitOfWork()
			manager := upload.NewManager(mockStorage, uow, testUploadConfig(), discardLogger)

			// Act
			session, err := manager.Begin(context.Background(), tc.file)

			// Assert
			assert.Nil(t, session)
			assert.ErrorIs(t, err, tc.wantErr)
			var validationErr *domain.ValidationError
			assert.True(t, errors.As(err, &validationErr))
			mockStorage.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			uow.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		})
	}
}

func TestManager_Begin_ChunkLimit(t *testing.T) {
	cfg := testUploadConfig()
	cfg.ChunkSize = 5 * units.MiB
	cfg.MaxChunks = 100
	manager := upload.NewManager(storage.NewMockStorage(), repository.NewMockUnitOfWork(), cfg, discardLogger)

	_, err := manager.Begin(context.Background(), sourceFile(courseID, 600*units.MiB))

	assert.ErrorIs(t, err, domain.ErrFileSizeTooBig)
}

func TestManager_Begin_Strategy(t *testing.T) {
	sessionID := uuid.MustParse("3f7a5b2c-1d4e-4f60-8a9b-0c1d2e3f4a5b")
	manager := upload.NewManager(storage.NewMockStorage(), repository.NewMockUnitOfWork(), testUploadConfig(), discardLogger,
		upload.WithIDGenerator(func() uuid.UUID { return sessionID }))

	t.Run("at the threshold uploads directly", func(t *testing.T) {
		s, err := manager.Begin(context.Background(), sourceFile(courseID, 500*units.MiB))

		require.NoError(t, err)
		info := s.Info()
		assert.Equal(t, domain.UploadStrategyDirect, info.Strategy)
		assert.Equal(t, domain.UploadSessionStatusPending, info.Status)
		assert.Equal(t, "course-"+courseID.String()+"/"+sessionID.String()+"_Intro_lecture.mp4", info.ObjectKey)
		assert.Len(t, s.Chunks(), 1)
	})

	t.Run("above the threshold uploads in chunks", func(t *testing.T) {
		s, err := manager.Begin(context.Background(), sourceFile(courseID, 500*units.MiB+1))

		require.NoError(t, err)
		assert.Equal(t, domain.UploadStrategyChunked, s.Info().Strategy)
		assert.Equal(t, int64(50*units.MiB), s.Info().ChunkSize)
		assert.Len(t, s.Chunks(), 11)
	})
}

// 250MB under a 500MB threshold goes out in one PUT and one row with chunked=false
func TestManager_Upload_ScenarioA(t *testing.T) {
	// Arrange
	ctx := context.Background()
	cfg := testUploadConfig()
	cfg.ChunkSize = 10 * units.MiB
	store := newFlakyStorage(memory.WithoutData())
	uow := repository.NewMockUnitOfWork()
	expectVideoPersisted(uow, courseID, 4, nil)
	manager := upload.NewManager(store, uow, cfg, discardLogger)
	src := patternSource{size: 250 * units.MiB}

	// Act
	video, err := manager.Upload(ctx, sourceFile(courseID, src.size), src, nil)

	// Assert
	require.NoError(t, err)
	keys := store.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 1, store.putCount(keys[0]))
	obj, _ := store.Get(keys[0])
	assert.Equal(t, src.size, obj.Size)
	assert.Equal(t, "video/mp4", obj.ContentType)

	assert.False(t, video.Metadata.Chunked)
	assert.Equal(t, keys[0], video.Metadata.StorageKey)
	assert.Equal(t, 4, video.OrderIndex)
	assert.Equal(t, "http://media.local/"+keys[0], video.FileURL)
	assert.Equal(t, 600, video.Duration)
	assert.Equal(t, *video, createdVideo(t, uow))
	uow.GetVideoRepoMock().AssertNumberOfCalls(t, "Create", 1)
	uow.AssertExpectations(t)
}

// 1.2GB in 50MB chunks with one transient failure on chunk 5 completes with every chunk uploaded
func TestManager_Upload_ScenarioB(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage(memory.WithoutData())
	uow := repository.NewMockUnitOfWork()
	expectVideoPersisted(uow, courseID, 0, nil)
	manager := upload.NewManager(store, uow, testUploadConfig(), discardLogger)
	src := patternSource{size: 1200 * units.MiB}

	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)
	sessionID := s.Info().ID
	store.failKey(upload.ChunkKey(sessionID, 5), 1)

	var mu sync.Mutex
	var samples []domain.TransferProgress
	onProgress := func(p domain.TransferProgress) {
		mu.Lock()
		defer mu.Unlock()
		samples = append(samples, p)
	}

	// Act
	err = manager.Transfer(ctx, s, src, onProgress)
	require.NoError(t, err)
	video, err := manager.Complete(ctx, s)

	// Assert
	require.NoError(t, err)
	chunks := s.Chunks()
	require.Len(t, chunks, 24)
	for _, c := range chunks {
		assert.True(t, c.Uploaded, "chunk %d", c.Index)
	}
	assert.Equal(t, 1, chunks[5].RetryCount)
	assert.Equal(t, 2, store.putCount(upload.ChunkKey(sessionID, 5)))
	assert.Equal(t, int64(1200*units.MiB), s.BytesTransferred())
	assert.Equal(t, domain.UploadSessionStatusCompleted, s.Status())

	assert.Equal(t, []string{s.Info().ObjectKey}, store.Keys())
	obj, _ := store.Get(s.Info().ObjectKey)
	assert.Equal(t, src.size, obj.Size)

	assert.True(t, video.Metadata.Chunked)
	assert.Equal(t, 24, video.Metadata.TotalChunks)
	assert.Equal(t, int64(1200*units.MiB), video.Metadata.TotalSize)
	assert.Equal(t, int64(50*units.MiB), video.Metadata.ChunkSize)
	assert.Equal(t, sessionID, video.Metadata.SessionID)
	assert.Equal(t, upload.ChunkPrefix(sessionID), video.Metadata.ChunkPrefix)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, samples)
	last := samples[len(samples)-1]
	assert.Equal(t, int64(1200*units.MiB), last.BytesTransferred)
	assert.Equal(t, int64(1200*units.MiB), last.TotalBytes)
}

// chunk 10 of 24 failing permanently fails the session and deletes exactly the uploaded chunks
func TestManager_Upload_ScenarioC(t *testing.T) {
	// Arrange
	ctx := context.Background()
	cfg := testUploadConfig()
	cfg.Concurrency = 1
	store := newFlakyStorage(memory.WithoutData())
	uow := repository.NewMockUnitOfWork()
	manager := upload.NewManager(store, uow, cfg, discardLogger)
	src := patternSource{size: 1200 * units.MiB}

	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)
	sessionID := s.Info().ID
	store.failKey(upload.ChunkKey(sessionID, 10), -1)

	// Act
	err = manager.Transfer(ctx, s, src, nil)

	// Assert
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.ErrorIs(t, err, domain.ErrChunkUploadFailed)
	assert.Equal(t, domain.UploadSessionStatusFailed, s.Status())
	assert.Equal(t, 4, store.putCount(upload.ChunkKey(sessionID, 10)))

	var uploaded []string
	for _, c := range s.Chunks() {
		if c.Uploaded {
			uploaded = append(uploaded, upload.ChunkKey(sessionID, c.Index))
		}
	}
	assert.Len(t, uploaded, 10)
	removals := store.removals()
	require.Len(t, removals, 1)
	assert.Equal(t, uploaded, removals[0])
	assert.Empty(t, store.Keys())
	assert.Equal(t, int64(10*50*units.MiB), s.BytesTransferred())
	uow.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)

	_, err = manager.Complete(ctx, s)
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)
}

func TestManager_Transfer_FailFastAccounting(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage()
	manager := upload.NewManager(store, repository.NewMockUnitOfWork(), smallConfig(3), discardLogger)
	src := patternSource{size: 100}
	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)
	store.failKey(upload.ChunkKey(s.Info().ID, 2), -1)

	// Act
	err = manager.Transfer(ctx, s, src, nil)

	// Assert
	require.ErrorIs(t, err, domain.ErrUploadFailed)
	var chunkErr *domain.ChunkUploadError
	require.True(t, errors.As(err, &chunkErr))
	assert.Equal(t, 2, chunkErr.Index)

	var sum int64
	for _, c := range s.Chunks() {
		if c.Uploaded {
			sum += c.Size()
		}
	}
	assert.Equal(t, sum, s.BytesTransferred())
	assert.False(t, s.Chunks()[2].Uploaded)
	assert.Equal(t, 3, s.Chunks()[2].RetryCount)
	assert.Empty(t, store.Keys())
}

func TestManager_Transfer_PauseResume(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage()
	started := make(chan string)
	release := make(chan struct{})
	store.beforePut = func(key string) {
		started <- key
		<-release
	}
	uow := repository.NewMockUnitOfWork()
	expectVideoPersisted(uow, courseID, 0, nil)
	manager := upload.NewManager(store, uow, smallConfig(2), discardLogger)
	src := patternSource{size: 100}
	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- manager.Transfer(ctx, s, src, nil)
	}()

	// Act: pause while two chunks are in flight
	<-started
	<-started
	require.NoError(t, s.Pause())
	release <- struct{}{}
	release <- struct{}{}

	// Assert: in-flight chunks finish, nothing new is claimed
	select {
	case key := <-started:
		t.Fatalf("claimed %s while paused", key)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, domain.UploadSessionStatusPaused, s.Status())
	assert.Equal(t, int64(20), s.BytesTransferred())

	// Act: resume and let the rest through
	require.NoError(t, s.Resume())
	for i := 0; i < 8; i++ {
		<-started
		release <- struct{}{}
	}

	// Assert
	require.NoError(t, <-done)
	assert.Equal(t, int64(100), s.BytesTransferred())
	video, err := manager.Complete(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 10, video.Metadata.TotalChunks)
	obj, ok := store.Get(s.Info().ObjectKey)
	require.True(t, ok)
	assert.Equal(t, digest(src, 0, 100), obj.SHA256)
}

func TestManager_Transfer_Cancel(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage()
	started := make(chan string)
	release := make(chan struct{})
	store.beforePut = func(key string) {
		started <- key
		<-release
	}
	uow := repository.NewMockUnitOfWork()
	manager := upload.NewManager(store, uow, smallConfig(2), discardLogger)
	src := patternSource{size: 100}
	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- manager.Transfer(ctx, s, src, nil)
	}()
	<-started
	<-started

	// Act
	require.NoError(t, manager.Abort(ctx, s))
	release <- struct{}{}
	release <- struct{}{}
	err = <-done

	// Assert
	assert.ErrorIs(t, err, domain.ErrUploadCancelled)
	assert.Equal(t, domain.UploadSessionStatusCancelled, s.Status())
	removals := store.removals()
	require.Len(t, removals, 1)
	assert.Len(t, removals[0], 2)
	assert.Empty(t, store.Keys())
	uow.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestManager_Transfer_ContextCancelled(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	store := newFlakyStorage()
	store.beforePut = func(string) { cancel() }
	manager := upload.NewManager(store, repository.NewMockUnitOfWork(), smallConfig(1), discardLogger)
	src := patternSource{size: 100}
	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)

	// Act
	err = manager.Transfer(ctx, s, src, nil)

	// Assert
	assert.ErrorIs(t, err, domain.ErrUploadCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.UploadSessionStatusCancelled, s.Status())
}

func TestManager_Abort_BeforeTransfer(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStorage()
	manager := upload.NewManager(store, repository.NewMockUnitOfWork(), smallConfig(2), discardLogger)
	s, err := manager.Begin(ctx, sourceFile(courseID, 100))
	require.NoError(t, err)

	require.NoError(t, manager.Abort(ctx, s))

	assert.Equal(t, domain.UploadSessionStatusCancelled, s.Status())
	assert.Empty(t, store.removals())
	assert.ErrorIs(t, manager.Transfer(ctx, s, patternSource{size: 100}, nil), domain.ErrInvalidSessionState)
}

func TestManager_Complete_MetadataPersistFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage()
	uow := repository.NewMockUnitOfWork()
	expectVideoPersisted(uow, courseID, 0, errors.New("connection refused"))
	manager := upload.NewManager(store, uow, smallConfig(3), discardLogger)
	src := patternSource{size: 100}

	// Act
	video, err := manager.Upload(ctx, sourceFile(courseID, src.size), src, nil)

	// Assert
	assert.Nil(t, video)
	assert.ErrorIs(t, err, domain.ErrMetadataPersist)
	assert.Empty(t, store.Keys())
	removals := store.removals()
	require.NotEmpty(t, removals)
	last := removals[len(removals)-1]
	require.Len(t, last, 1)
	assert.True(t, strings.HasPrefix(last[0], "course-"+courseID.String()+"/"))
}

func TestManager_Complete_ComposeFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage()
	store.composeErr = errors.New("part too small")
	uow := repository.NewMockUnitOfWork()
	manager := upload.NewManager(store, uow, smallConfig(3), discardLogger)
	src := patternSource{size: 100}

	// Act
	_, err := manager.Upload(ctx, sourceFile(courseID, src.size), src, nil)

	// Assert
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.Empty(t, store.Keys())
	uow.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestManager_Upload_RecordsMetrics(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := newFlakyStorage()
	uow := repository.NewMockUnitOfWork()
	expectVideoPersisted(uow, courseID, 0, nil)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	manager := upload.NewManager(store, uow, smallConfig(2), discardLogger, upload.WithMetrics(metrics))
	src := patternSource{size: 100}

	s, err := manager.Begin(ctx, sourceFile(courseID, src.size))
	require.NoError(t, err)
	store.failKey(upload.ChunkKey(s.Info().ID, 3), 1)

	// Act
	require.NoError(t, manager.Transfer(ctx, s, src, nil))
	_, err = manager.Complete(ctx, s)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, float64(10), testutil.ToFloat64(metrics.ChunkAttempts.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ChunkAttempts.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ChunkRetries))
	assert.Equal(t, float64(100), testutil.ToFloat64(metrics.BytesUploaded))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UploadSessions.WithLabelValues("chunked", "completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.UploadDuration))
}
