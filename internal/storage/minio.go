package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abduss/filestore/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectStoreTimeout = 5 * time.Second

// NewMinIOClient establishes a MinIO client using the provided configuration.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, ":") {
		// default to MinIO API port when not supplied explicitly
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// EnsureBucket creates the upload bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg config.MinIOConfig) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
	}
	return nil
}

// EnsureDiskRoot prepares the directory used by the disk storage driver.
func EnsureDiskRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return fmt.Errorf("disk storage root is empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("create disk root %q: %w", root, err)
	}
	return nil
}
