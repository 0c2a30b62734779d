package file

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
)

const (
	// S3 rejects multipart parts below 5 MiB.
	minPartSize = 5 * 1024 * 1024
	maxPartSize = 16 * 1024 * 1024
)

type minioClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinIOStore keeps objects in a single MinIO bucket.
type MinIOStore struct {
	client   minioClient
	bucket   string
	partSize uint64
}

// NewMinIOStore constructs an adapter. maxObjectSize sizes the multipart
// buffer each streaming Put holds in memory.
func NewMinIOStore(client minioClient, bucket string, maxObjectSize int64) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, partSize: partSizeFor(maxObjectSize)}
}

// partSizeFor keeps one part between the S3 minimum and a 16 MiB ceiling.
// Without it minio-go sizes parts for a 5 TiB object of unknown length.
func partSizeFor(maxObjectSize int64) uint64 {
	switch {
	case maxObjectSize <= minPartSize:
		return minPartSize
	case maxObjectSize >= maxPartSize:
		return maxPartSize
	default:
		return uint64(maxObjectSize)
	}
}

func (s *MinIOStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	// size -1 streams with multipart upload; nothing becomes visible until it completes
	info, err := s.client.PutObject(ctx, s.bucket, name, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	})
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}
	return info.Size, nil
}

func (s *MinIOStore) Get(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, translateMinIOError(err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, translateMinIOError(err)
	}
	return obj, ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (s *MinIOStore) Stat(ctx context.Context, name string) (ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateMinIOError(err)
	}
	return ObjectInfo{Size: stat.Size, ContentType: stat.ContentType}, nil
}

func (s *MinIOStore) Remove(ctx context.Context, name string) error {
	if _, err := s.Stat(ctx, name); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return translateMinIOError(err)
	}
	return nil
}

func translateMinIOError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	return fmt.Errorf("minio: %w", err)
}
