package file

import (
	"context"
	"io"
)

// ObjectStore persists upload bytes under their stored name.
//
// Put streams until r is exhausted and returns the number of bytes written;
// it must not leave a readable object behind when it fails. Get and Stat
// return ErrObjectNotFound for missing objects. Remove of a missing object
// returns ErrObjectNotFound as well.
type ObjectStore interface {
	Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)
	Get(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, name string) (ObjectInfo, error)
	Remove(ctx context.Context, name string) error
}
