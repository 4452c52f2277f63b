package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ObjectStore is read-only access to a flat key space of raw objects.
type ObjectStore interface {
	// List returns every key under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Open returns the body of one object. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("object not found")

// LocalStore serves objects from a filesystem. Keys are slash-separated
// paths relative to the root.
type LocalStore struct {
	fsys fs.FS
}

// NewLocalStore returns a store over fsys, typically os.DirFS(dir).
func NewLocalStore(fsys fs.FS) *LocalStore {
	return &LocalStore{fsys: fsys}
}

// List matches keys against prefix byte for byte, as Cloud Storage does, so a
// prefix ending in "/" selects one directory and never its siblings.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	root := "."
	switch {
	case prefix == "":
	case strings.HasSuffix(prefix, "/"):
		root = strings.TrimSuffix(prefix, "/")
	default:
		root = path.Dir(prefix)
	}

	var keys []string
	err := fs.WalkDir(s.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && strings.HasPrefix(p, prefix) {
			keys = append(keys, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fsys.Open(strings.TrimPrefix(key, "/"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return f, nil
}

// GCSStore serves objects from one Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	timeout time.Duration
}

// NewGCSStore connects to the bucket using application default credentials,
// or the service account file when credentialsFile is set.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string, timeout time.Duration) (*GCSStore, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, timeout: timeout}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	// The timeout covers the whole read, so it is cancelled on Close
	// rather than on return.
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}
