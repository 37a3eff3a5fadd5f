// Package memory is an in-process object store. The uploader uses it for dry runs.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Object is a stored object. Data is nil when the store only keeps digests.
type Object struct {
	Key          string
	Size         int64
	SHA256       [sha256.Size]byte
	Data         []byte
	ContentType  string
	LastModified time.Time
	// Writes counts how many times the key was written.
	Writes int
}

// Store keeps objects in memory
type Store struct {
	mu       sync.Mutex
	objects  map[string]*Object
	keepData bool
	baseURL  string
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithoutData keeps only sizes and digests, for transfers too large to hold in memory
func WithoutData() Option {
	return func(s *Store) {
		s.keepData = false
	}
}

// WithClock replaces time.Now for LastModified
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store whose URLs start with baseURL
func New(baseURL string, opts ...Option) *Store {
	s := &Store{
		objects:  make(map[string]*Object),
		keepData: true,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	h := sha256.New()
	var buf *bytes.Buffer
	w := io.Writer(h)
	if s.keepData {
		buf = bytes.NewBuffer(make([]byte, 0, size))
		w = io.MultiWriter(h, buf)
	}

	n, err := io.Copy(w, &contextReader{ctx: ctx, r: r})
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if n != size {
		return fmt.Errorf("object %s: read %d bytes, expected %d", key, n, size)
	}

	obj := &Object{Key: key, Size: n, ContentType: contentType}
	copy(obj.SHA256[:], h.Sum(nil))
	if buf != nil {
		obj.Data = buf.Bytes()
	}
	s.store(obj)
	return nil
}

func (s *Store) RemoveObjects(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return nil
}

// ComposeObject concatenates srcs into dst. Without data the digest is computed over the source digests.
func (s *Store) ComposeObject(ctx context.Context, dst string, srcs []string) error {
	if len(srcs) == 0 {
		return fmt.Errorf("no source objects to compose into %s", dst)
	}

	s.mu.Lock()
	sources := make([]*Object, 0, len(srcs))
	for _, key := range srcs {
		obj, ok := s.objects[key]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("source object %s does not exist", key)
		}
		sources = append(sources, obj)
	}
	s.mu.Unlock()

	var h hash.Hash = sha256.New()
	out := &Object{Key: dst}
	for _, src := range sources {
		out.Size += src.Size
		if s.keepData {
			out.Data = append(out.Data, src.Data...)
			h.Write(src.Data)
		} else {
			h.Write(src.SHA256[:])
		}
	}
	copy(out.SHA256[:], h.Sum(nil))
	s.store(out)
	return nil
}

func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

func (s *Store) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("%s/%s?expires=%d", s.baseURL, key, s.now().Add(ttl).Unix()), nil
}

func (s *Store) ListObjectsOlderThan(ctx context.Context, prefix string, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) && obj.LastModified.Before(before) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns a copy of the object stored under key
func (s *Store) Get(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, false
	}
	return *obj, true
}

// Keys returns every stored key in lexical order
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) store(obj *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.objects[obj.Key]; ok {
		obj.Writes = prev.Writes
	}
	obj.Writes++
	obj.LastModified = s.now()
	s.objects[obj.Key] = obj
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
