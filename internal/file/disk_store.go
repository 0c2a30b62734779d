package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

// DiskStore keeps objects as files under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore constructs a DiskStore rooted at root, which must exist.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) Put(ctx context.Context, name string, r io.Reader, _ string) (int64, error) {
	target, err := s.path(name)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.root, ".partial-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	n, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return n, fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return n, fmt.Errorf("sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return n, fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return n, fmt.Errorf("commit object: %w", err)
	}
	return n, nil
}

func (s *DiskStore) Get(_ context.Context, name string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, ObjectInfo{}, translateFSError(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, translateFSError(err)
	}
	return f, ObjectInfo{Size: info.Size(), ContentType: mime.TypeByExtension(filepath.Ext(name))}, nil
}

func (s *DiskStore) Stat(_ context.Context, name string) (ObjectInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, translateFSError(err)
	}
	return ObjectInfo{Size: info.Size(), ContentType: mime.TypeByExtension(filepath.Ext(name))}, nil
}

func (s *DiskStore) Remove(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return translateFSError(err)
	}
	return nil
}

// path confines name to the root directory.
func (s *DiskStore) path(name string) (string, error) {
	if !validStoredName(name) {
		return "", ErrObjectNotFound
	}
	return filepath.Join(s.root, name), nil
}

func translateFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// contextReader stops a copy once ctx is cancelled.
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
