package file

import (
	"fmt"
	"path"
	"regexp"

	"github.com/google/uuid"
)

var extPattern = regexp.MustCompile(`(?i)^\.[a-z0-9]{1,16}$`)

// NewStoredName returns a collision-resistant object name: a UUIDv7 (time
// ordered with a random tail) followed by the original extension when it is
// a plain alphanumeric one.
func NewStoredName(originalName string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate stored name: %w", err)
	}
	return id.String() + safeExt(originalName), nil
}

func safeExt(name string) string {
	ext := path.Ext(name)
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// validStoredName reports whether name could have come from NewStoredName.
func validStoredName(name string) bool {
	if len(name) < 36 {
		return false
	}
	if _, err := uuid.Parse(name[:36]); err != nil {
		return false
	}
	rest := name[36:]
	return rest == "" || extPattern.MatchString(rest)
}
