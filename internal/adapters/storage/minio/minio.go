package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"lms-media/internal/config"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Adapter is an adapter for minio
type Adapter struct {
	client *minio.Client
	config config.MinioConfig
	logger *slog.Logger
}

// NewAdapter returns Adapter
func NewAdapter(ctx context.Context, cfg config.MinioConfig, logger *slog.Logger) (*Adapter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Adapter{client: client, config: cfg, logger: logger}, nil
}

// PutObject uploads size bytes from r, replacing any object stored under key
func (a *Adapter) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    uint64(a.config.PartSizeForUploads.Int64()),
	}
	if _, err := a.client.PutObject(ctx, a.config.BucketName, key, r, size, opts); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// RemoveObjects deletes keys in one batch. Missing keys are not an error.
func (a *Adapter) RemoveObjects(ctx context.Context, keys []string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var errs []error
	for removeErr := range a.client.RemoveObjects(ctx, a.config.BucketName, objects, minio.RemoveObjectsOptions{}) {
		a.logger.Warn("failed to remove object", "key", removeErr.ObjectName, "error", removeErr.Err)
		errs = append(errs, fmt.Errorf("%s: %w", removeErr.ObjectName, removeErr.Err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to remove %d objects: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// ComposeObject concatenates srcs server side into dst
func (a *Adapter) ComposeObject(ctx context.Context, dst string, srcs []string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("no source objects to compose into %s", dst)
	}

	sources := make([]minio.CopySrcOptions, 0, len(srcs))
	for _, src := range srcs {
		sources = append(sources, minio.CopySrcOptions{Bucket: a.config.BucketName, Object: src})
	}
	dest := minio.CopyDestOptions{Bucket: a.config.BucketName, Object: dst}

	if _, err := a.client.ComposeObject(ctx, dest, sources...); err != nil {
		return fmt.Errorf("failed to compose %d objects into %s: %w", len(srcs), dst, err)
	}
	return nil
}

// PublicURL returns the unsigned URL of key
func (a *Adapter) PublicURL(key string) string {
	if a.config.PublicBaseURL != "" {
		return strings.TrimRight(a.config.PublicBaseURL, "/") + "/" + key
	}
	u := *a.client.EndpointURL()
	u.Path = "/" + a.config.BucketName + "/" + key
	return u.String()
}

// PresignedGetURL returns a download URL valid for ttl
func (a *Adapter) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presignedURL, err := a.client.PresignedGetObject(ctx, a.config.BucketName, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return presignedURL.String(), nil
}

// ListObjectsOlderThan lists keys under prefix last modified before the given time
func (a *Adapter) ListObjectsOlderThan(ctx context.Context, prefix string, before time.Time) ([]string, error) {
	return keysOlderThan(ctx, func(ctx context.Context) <-chan minio.ObjectInfo {
		return a.client.ListObjects(ctx, a.config.BucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	}, prefix, before)
}

// keysOlderThan cancels the listing when it returns early so the producer goroutine can exit.
func keysOlderThan(ctx context.Context, list func(context.Context) <-chan minio.ObjectInfo, prefix string, before time.Time) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for object := range list(ctx) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, object.Err)
		}
		if object.LastModified.Before(before) {
			keys = append(keys, object.Key)
		}
	}
	return keys, nil
}

// ReadObject returns the content of key. Used to verify assembled uploads.
func (a *Adapter) ReadObject(ctx context.Context, key string) ([]byte, error) {
	object, err := a.client.GetObject(ctx, a.config.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}
