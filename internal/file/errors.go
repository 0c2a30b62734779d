package file

import "errors"

var (
	// ErrFileNotFound signals that no file with that name belongs to the caller,
	// or that its bytes are gone.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = errors.New("file too large")
	// ErrMissingFile is returned when the multipart body carries no file part.
	ErrMissingFile = errors.New("file field is required")
	// ErrMissingComment is returned when the comment field is absent or blank.
	ErrMissingComment = errors.New("comment field is required")
	// ErrInvalidUpload covers malformed or truncated multipart bodies.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrStorage wraps object store and metadata failures.
	ErrStorage = errors.New("storage failure")
	// ErrObjectNotFound is returned by object stores for missing objects.
	ErrObjectNotFound = errors.New("object not found")
)
