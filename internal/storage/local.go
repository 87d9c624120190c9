package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalService writes images below a directory that the HTTP layer serves
// under baseURL.
type LocalService struct {
	root    string
	baseURL string
}

func NewLocalService(root, baseURL string) (*LocalService, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalService{
		root:    filepath.Clean(root),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root is the directory objects are written to.
func (s *LocalService) Root() string {
	return s.root
}

func (s *LocalService) PutObject(ctx context.Context, key string, body io.Reader, contentType string) (Object, error) {
	dest, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("chmod object %s: %w", key, err)
	}

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: body}); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("sync object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("close object %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Object{}, fmt.Errorf("publish object %s: %w", key, err)
	}

	return Object{Key: key, URL: s.baseURL + "/" + filepath.ToSlash(key)}, nil
}

func (s *LocalService) DeleteObject(ctx context.Context, key string) error {
	dest, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *LocalService) path(key string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(key, "/"))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, rel), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ Service = (*LocalService)(nil)
