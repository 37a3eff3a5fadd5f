package port

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is an interface to define object storage interactions
type ObjectStorage interface {
	// PutObject writes size bytes from r under key, overwriting any previous object
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	RemoveObjects(ctx context.Context, keys []string) error
	// ComposeObject concatenates srcs, in order, into dst
	ComposeObject(ctx context.Context, dst string, srcs []string) error
	PublicURL(key string) string
	PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	ListObjectsOlderThan(ctx context.Context, prefix string, before time.Time) ([]string, error)
}
