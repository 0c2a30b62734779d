package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/abduss/filestore/internal/metrics"
	"github.com/abduss/filestore/internal/progress"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxFileSize   = 50 * 1024 * 1024
	defaultMaxCommentLen = 4096
	defaultContentType   = "application/octet-stream"
	cleanupTimeout       = 10 * time.Second
	fileField            = "file"
	commentField         = "comment"
	resultOK             = "ok"
	resultTooLarge       = "too_large"
	resultInvalid        = "invalid"
	resultStorageFailure = "storage_error"
)

type metadataStore interface {
	Create(ctx context.Context, f StoredFile) (StoredFile, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]StoredFile, error)
	Get(ctx context.Context, ownerID uuid.UUID, storedName string) (StoredFile, error)
	Delete(ctx context.Context, ownerID uuid.UUID, storedName string) (StoredFile, error)
}

type publisher interface {
	Publish(key string, percent int) bool
}

// Limits bounds what a single upload may carry.
type Limits struct {
	MaxFileSize   int64
	MaxCommentLen int
}

// Service manages file lifecycle operations.
type Service struct {
	repo     metadataStore
	objects  ObjectStore
	progress publisher
	limits   Limits
	log      *zap.Logger
}

// NewService constructs a file service. progress may be nil.
func NewService(repo metadataStore, objects ObjectStore, progress publisher, limits Limits, log *zap.Logger) *Service {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = defaultMaxFileSize
	}
	if limits.MaxCommentLen <= 0 {
		limits.MaxCommentLen = defaultMaxCommentLen
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		objects:  objects,
		progress: progress,
		limits:   limits,
		log:      log,
	}
}

// MaxFileSize reports the configured per-file limit.
func (s *Service) MaxFileSize() int64 { return s.limits.MaxFileSize }

// UploadInput describes one multipart upload request.
type UploadInput struct {
	OwnerID       uuid.UUID
	CorrelationID string
	// DeclaredSize is the request Content-Length; zero or negative when unknown.
	DeclaredSize int64
	Body         io.Reader
	Boundary     string
}

// Upload streams the multipart body into the object store, publishing
// progress for CorrelationID as bytes arrive, and commits the metadata row.
// Any failure after bytes were written removes the partial object.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	result, size, err := s.upload(ctx, in)
	switch {
	case err == nil:
		metrics.ObserveUpload(resultOK, size)
	case errors.Is(err, ErrFileTooLarge):
		metrics.ObserveUpload(resultTooLarge, 0)
	case errors.Is(err, ErrStorage):
		metrics.ObserveUpload(resultStorageFailure, 0)
	default:
		metrics.ObserveUpload(resultInvalid, 0)
	}
	return result, err
}

func (s *Service) upload(ctx context.Context, in UploadInput) (UploadResult, int64, error) {
	if in.Boundary == "" {
		return UploadResult{}, 0, fmt.Errorf("%w: missing multipart boundary", ErrInvalidUpload)
	}

	key := ""
	if in.CorrelationID != "" && s.progress != nil {
		key = progress.Key(in.OwnerID.String(), in.CorrelationID)
	}
	counter := newProgressReader(in.Body, in.DeclaredSize, func(percent int) {
		if key != "" {
			s.progress.Publish(key, percent)
		}
	})

	var (
		storedName   string
		originalName string
		contentType  string
		size         int64
		comment      string
		sawComment   bool
		committed    bool
	)
	defer func() {
		if storedName != "" && !committed {
			s.discard(ctx, storedName)
		}
	}()

	reader := multipart.NewReader(counter, in.Boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return UploadResult{}, 0, readError(err)
		}

		switch part.FormName() {
		case commentField:
			text, err := s.readComment(part)
			if err != nil {
				return UploadResult{}, 0, err
			}
			comment, sawComment = text, true

		case fileField:
			if part.FileName() == "" {
				// browsers send an empty file part when nothing was picked
				if _, err := io.Copy(io.Discard, part); err != nil {
					return UploadResult{}, 0, readError(err)
				}
				continue
			}
			if storedName != "" {
				return UploadResult{}, 0, fmt.Errorf("%w: more than one file part", ErrInvalidUpload)
			}
			if sawComment && comment == "" {
				return UploadResult{}, 0, ErrMissingComment
			}

			originalName = NormalizeFilename(part.FileName())
			contentType = part.Header.Get("Content-Type")
			if contentType == "" {
				contentType = defaultContentType
			}

			name, err := NewStoredName(originalName)
			if err != nil {
				return UploadResult{}, 0, fmt.Errorf("%w: %w", ErrStorage, err)
			}
			storedName = name

			size, err = s.store(ctx, storedName, part, contentType)
			if err != nil {
				return UploadResult{}, 0, err
			}

		default:
			if _, err := io.Copy(io.Discard, part); err != nil {
				return UploadResult{}, 0, readError(err)
			}
		}
	}

	if storedName == "" {
		return UploadResult{}, 0, ErrMissingFile
	}
	if comment == "" {
		return UploadResult{}, 0, ErrMissingComment
	}

	stored, err := s.repo.Create(ctx, StoredFile{
		StoredName:   storedName,
		OwnerID:      in.OwnerID,
		OriginalName: originalName,
		Comment:      comment,
		SizeBytes:    size,
		ContentType:  contentType,
	})
	if err != nil {
		return UploadResult{}, 0, fmt.Errorf("%w: save metadata: %w", ErrStorage, err)
	}
	committed = true

	if key != "" {
		s.progress.Publish(key, 100)
	}

	s.log.Info("upload stored",
		zap.String("owner_id", in.OwnerID.String()),
		zap.String("stored_name", stored.StoredName),
		zap.Int64("size", stored.SizeBytes),
	)
	return UploadResult{StoredName: stored.StoredName, OriginalName: stored.OriginalName}, stored.SizeBytes, nil
}

// store streams one file part into the object store under the size limit.
func (s *Service) store(ctx context.Context, name string, part io.Reader, contentType string) (int64, error) {
	limited := &sizeLimiter{r: part, remaining: s.limits.MaxFileSize}

	n, err := s.objects.Put(ctx, name, limited, contentType)
	if limited.exceeded {
		return 0, ErrFileTooLarge
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return 0, ErrFileTooLarge
		}
		if limited.readErr != nil {
			return 0, readError(limited.readErr)
		}
		return 0, fmt.Errorf("%w: store object: %w", ErrStorage, err)
	}
	if limited.readErr != nil {
		// the store swallowed a client-side read failure
		return 0, readError(limited.readErr)
	}
	return n, nil
}

func (s *Service) readComment(part io.Reader) (string, error) {
	buf, err := io.ReadAll(io.LimitReader(part, int64(s.limits.MaxCommentLen)+1))
	if err != nil {
		return "", readError(err)
	}
	if len(buf) > s.limits.MaxCommentLen {
		return "", fmt.Errorf("%w: comment longer than %d bytes", ErrInvalidUpload, s.limits.MaxCommentLen)
	}
	return strings.TrimSpace(string(buf)), nil
}

// discard removes a partially written object. It runs even when the request
// context is already cancelled.
func (s *Service) discard(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.objects.Remove(ctx, name); err != nil && !errors.Is(err, ErrObjectNotFound) {
		s.log.Error("remove partial object", zap.String("stored_name", name), zap.Error(err))
		return
	}
	s.log.Debug("partial object removed", zap.String("stored_name", name))
}

// List returns the owner's files, newest first, skipping rows whose object is gone.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]StoredFile, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	files := make([]StoredFile, 0, len(rows))
	for _, row := range rows {
		if _, err := s.objects.Stat(ctx, row.StoredName); err != nil {
			if !errors.Is(err, ErrObjectNotFound) {
				s.log.Warn("stat object", zap.String("stored_name", row.StoredName), zap.Error(err))
			}
			continue
		}
		files = append(files, row)
	}
	return files, nil
}

// Download returns the file's metadata and a reader over its bytes. The
// caller must close the reader.
func (s *Service) Download(ctx context.Context, ownerID uuid.UUID, storedName string) (StoredFile, io.ReadCloser, ObjectInfo, error) {
	meta, err := s.repo.Get(ctx, ownerID, storedName)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return StoredFile{}, nil, ObjectInfo{}, ErrFileNotFound
		}
		return StoredFile{}, nil, ObjectInfo{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	body, info, err := s.objects.Get(ctx, meta.StoredName)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			s.log.Warn("metadata row without object", zap.String("stored_name", storedName))
			return StoredFile{}, nil, ObjectInfo{}, ErrFileNotFound
		}
		return StoredFile{}, nil, ObjectInfo{}, fmt.Errorf("%w: fetch object: %w", ErrStorage, err)
	}
	return meta, body, info, nil
}

// Delete removes the metadata row, then the object. A failed object removal
// is logged and leaves an orphan object; the call still succeeds.
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, storedName string) error {
	meta, err := s.repo.Delete(ctx, ownerID, storedName)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.objects.Remove(ctx, meta.StoredName); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			s.log.Debug("object already gone", zap.String("stored_name", storedName))
		} else {
			s.log.Error("remove object after metadata delete", zap.String("stored_name", storedName), zap.Error(err))
		}
	}
	return nil
}

func readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrFileTooLarge
	}
	return fmt.Errorf("%w: %w", ErrInvalidUpload, err)
}
