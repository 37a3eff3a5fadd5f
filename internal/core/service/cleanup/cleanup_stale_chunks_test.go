package cleanup_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"lms-media/internal/adapters/storage"
	"lms-media/internal/core/service/cleanup"
	"lms-media/internal/observability"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCleanupService_CleanupStaleChunks_NoStaleChunks(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockStorage := storage.NewMockStorage()
	service := cleanup.NewCleanupService(mockStorage, 24*time.Hour, logger, nil)

	now := time.Now()
	mockStorage.On("ListObjectsOlderThan", ctx, "chunks/", now.Add(-24*time.Hour)).Return([]string{}, nil)

	// Act
	removed, err := service.CleanupStaleChunks(ctx, now)

	// Assert
	assert.NoError(t, err)
	assert.Zero(t, removed)
	mockStorage.AssertExpectations(t)
	mockStorage.AssertNotCalled(t, "RemoveObjects", mock.Anything, mock.Anything)
}

func TestCleanupService_CleanupStaleChunks_RemovesInBatches(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockStorage := storage.NewMockStorage()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	service := cleanup.NewCleanupService(mockStorage, time.Hour, logger, metrics)

	now := time.Now()
	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = fmt.Sprintf("chunks/s/chunk_%06d", i)
	}
	mockStorage.On("ListObjectsOlderThan", ctx, "chunks/", now.Add(-time.Hour)).Return(keys, nil)
	mockStorage.On("RemoveObjects", ctx, keys[:1000]).Return(nil).Once()
	mockStorage.On("RemoveObjects", ctx, keys[1000:2000]).Return(nil).Once()
	mockStorage.On("RemoveObjects", ctx, keys[2000:]).Return(nil).Once()

	// Act
	removed, err := service.CleanupStaleChunks(ctx, now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 2500, removed)
	assert.Equal(t, float64(2500), testutil.ToFloat64(metrics.ChunksSwept))
	mockStorage.AssertExpectations(t)
}

func TestCleanupService_CleanupStaleChunks_ListError(t *testing.T) {
	ctx := context.Background()
	mockStorage := storage.NewMockStorage()
	service := cleanup.NewCleanupService(mockStorage, time.Hour, logger, nil)

	now := time.Now()
	listErr := errors.New("bucket unreachable")
	mockStorage.On("ListObjectsOlderThan", ctx, "chunks/", mock.Anything).Return(nil, listErr)

	removed, err := service.CleanupStaleChunks(ctx, now)

	assert.ErrorIs(t, err, listErr)
	assert.Zero(t, removed)
}

func TestCleanupService_CleanupStaleChunks_RemoveErrorStopsSweep(t *testing.T) {
	ctx := context.Background()
	mockStorage := storage.NewMockStorage()
	service := cleanup.NewCleanupService(mockStorage, time.Hour, logger, nil)

	now := time.Now()
	keys := make([]string, 1500)
	for i := range keys {
		keys[i] = fmt.Sprintf("chunks/s/chunk_%06d", i)
	}
	removeErr := errors.New("access denied")
	mockStorage.On("ListObjectsOlderThan", ctx, "chunks/", mock.Anything).Return(keys, nil)
	mockStorage.On("RemoveObjects", ctx, keys[:1000]).Return(nil).Once()
	mockStorage.On("RemoveObjects", ctx, keys[1000:]).Return(removeErr).Once()

	removed, err := service.CleanupStaleChunks(ctx, now)

	assert.ErrorIs(t, err, removeErr)
	assert.Equal(t, 1000, removed)
	mockStorage.AssertExpectations(t)
}
