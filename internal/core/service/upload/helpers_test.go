package upload_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"lms-media/internal/adapters/repository"
	"lms-media/internal/adapters/storage/memory"
	"lms-media/internal/config"
	"lms-media/internal/core/domain"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var errTransient = errors.New("connection reset by peer")

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// patternSource is a deterministic io.ReaderAt of any size that needs no backing memory
type patternSource struct {
	size int64
}

var pattern = func() []byte {
	b := make([]byte, 251*4096)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}()

func (p patternSource) ReadAt(b []byte, off int64) (int, error) {
	if off >= p.size {
		return 0, io.EOF
	}
	n := len(b)
	if rem := p.size - off; int64(n) > rem {
		n = int(rem)
	}
	for written := 0; written < n; {
		start := int((off + int64(written)) % 251)
		written += copy(b[written:n], pattern[start:])
	}
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func digest(src io.ReaderAt, start, end int64) [sha256.Size]byte {
	h := sha256.New()
	_, _ = io.Copy(h, io.NewSectionReader(src, start, end-start))
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// flakyStorage wraps the memory store with scripted failures and call recording
type flakyStorage struct {
	*memory.Store

	mu         sync.Mutex
	failures   map[string]int
	partial    bool
	puts       map[string]int
	removed    [][]string
	composeErr error
	beforePut  func(key string)
}

func newFlakyStorage(opts ...memory.Option) *flakyStorage {
	return &flakyStorage{
		Store:    memory.New("http://media.local", opts...),
		failures: make(map[string]int),
		puts:     make(map[string]int),
	}
}

// failKey makes the next n puts to key fail; n < 0 fails forever
func (f *flakyStorage) failKey(key string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = n
}

func (f *flakyStorage) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	f.mu.Lock()
	f.puts[key]++
	remaining := f.failures[key]
	if remaining > 0 {
		f.failures[key]--
	}
	partial := f.partial
	hook := f.beforePut
	f.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if remaining != 0 {
		if partial && size > 1 {
			// leave a torn object behind, as an interrupted transfer would
			_ = f.Store.PutObject(ctx, key, io.LimitReader(r, size/2), size/2, contentType)
		}
		return errTransient
	}
	return f.Store.PutObject(ctx, key, r, size, contentType)
}

func (f *flakyStorage) RemoveObjects(ctx context.Context, keys []string) error {
	f.mu.Lock()
	f.removed = append(f.removed, append([]string(nil), keys...))
	f.mu.Unlock()
	return f.Store.RemoveObjects(ctx, keys)
}

func (f *flakyStorage) ComposeObject(ctx context.Context, dst string, srcs []string) error {
	if f.composeErr != nil {
		return f.composeErr
	}
	return f.Store.ComposeObject(ctx, dst, srcs)
}

func (f *flakyStorage) putCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts[key]
}

func (f *flakyStorage) removals() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.removed...)
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		DirectThreshold:  500 * units.MiB,
		MaxFileSize:      3 * units.GiB,
		ChunkSize:        50 * units.MiB,
		Concurrency:      3,
		MaxRetries:       3,
		RetryWait:        0,
		AttemptTimeout:   time.Minute,
		DirectTimeout:    time.Minute,
		ProgressInterval: 10 * time.Millisecond,
		MaxChunks:        10000,
	}
}

// smallConfig splits a 100 byte file into ten 10 byte chunks
func smallConfig(concurrency int) config.UploadConfig {
	cfg := testUploadConfig()
	cfg.DirectThreshold = 10
	cfg.ChunkSize = 10
	cfg.Concurrency = concurrency
	return cfg
}

func expectVideoPersisted(uow *repository.MockUnitOfWork, courseID uuid.UUID, orderIndex int, createErr error) {
	uow.On("Execute", mock.Anything, mock.Anything).Return(nil)
	uow.GetVideoRepoMock().On("NextOrderIndex", mock.Anything, courseID).Return(orderIndex, nil)
	uow.GetVideoRepoMock().On("Create", mock.Anything, mock.AnythingOfType("domain.VideoRecord")).Return(createErr)
}

func createdVideo(t *testing.T, uow *repository.MockUnitOfWork) domain.VideoRecord {
	t.Helper()
	for _, call := range uow.GetVideoRepoMock().Calls {
		if call.Method == "Create" {
			return call.Arguments.Get(1).(domain.VideoRecord)
		}
	}
	t.Fatal("no video created")
	return domain.VideoRecord{}
}

func sourceFile(courseID uuid.UUID, size int64) domain.SourceFile {
	return domain.SourceFile{
		CourseID: courseID,
		Title:    "Intro lecture",
		FileName: "Intro lecture.mp4",
		MimeType: "video/mp4",
		Size:     size,
		Duration: 600,
	}
}
