package file

import (
	"time"

	"github.com/google/uuid"
)

// StoredFile is one row of the metadata index.
type StoredFile struct {
	StoredName   string    `json:"storedName"`
	OwnerID      uuid.UUID `json:"-"`
	OriginalName string    `json:"originalName"`
	Comment      string    `json:"comment"`
	SizeBytes    int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UploadResult is returned to the uploader.
type UploadResult struct {
	StoredName   string `json:"storedName"`
	OriginalName string `json:"originalName"`
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}
