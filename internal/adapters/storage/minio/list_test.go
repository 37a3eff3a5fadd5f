package minio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endlessListing emits a failed entry and then keeps producing until ctx is cancelled, like the minio client does.
func endlessListing(exited chan<- struct{}) func(context.Context) <-chan minio.ObjectInfo {
	return func(ctx context.Context) <-chan minio.ObjectInfo {
		objects := make(chan minio.ObjectInfo)
		go func() {
			defer close(exited)
			defer close(objects)
			select {
			case objects <- minio.ObjectInfo{Err: errors.New("access denied")}:
			case <-ctx.Done():
				return
			}
			for {
				select {
				case objects <- minio.ObjectInfo{Key: "chunks/late"}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return objects
	}
}

func TestKeysOlderThan_ErrorReleasesListing(t *testing.T) {
	// Arrange
	exited := make(chan struct{})

	// Act
	keys, err := keysOlderThan(context.Background(), endlessListing(exited), "chunks/", time.Now())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Nil(t, keys)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("listing goroutine still running after an early return")
	}
}

func TestKeysOlderThan_FiltersByLastModified(t *testing.T) {
	// Arrange
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	list := func(ctx context.Context) <-chan minio.ObjectInfo {
		objects := make(chan minio.ObjectInfo, 3)
		objects <- minio.ObjectInfo{Key: "chunks/a/0", LastModified: cutoff.Add(-time.Hour)}
		objects <- minio.ObjectInfo{Key: "chunks/a/1", LastModified: cutoff.Add(time.Hour)}
		objects <- minio.ObjectInfo{Key: "chunks/b/0", LastModified: cutoff.Add(-time.Minute)}
		close(objects)
		return objects
	}

	// Act
	keys, err := keysOlderThan(context.Background(), list, "chunks/", cutoff)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"chunks/a/0", "chunks/b/0"}, keys)
}
