package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const fileColumns = `stored_name, owner_id, original_name, comment, size_bytes, content_type, created_at`

// Repository provides access to the metadata index.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the metadata row for a completed upload.
func (r *Repository) Create(ctx context.Context, f StoredFile) (StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (stored_name, owner_id, original_name, comment, size_bytes, content_type)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + fileColumns + `;`

	stored, err := scanFile(r.pool.QueryRow(ctx, query,
		f.StoredName,
		f.OwnerID,
		f.OriginalName,
		f.Comment,
		f.SizeBytes,
		f.ContentType,
	))
	if err != nil {
		return StoredFile{}, fmt.Errorf("create file metadata: %w", err)
	}
	return stored, nil
}

// ListByOwner returns the owner's files, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + fileColumns + `
FROM files
WHERE owner_id = $1
ORDER BY created_at DESC, stored_name DESC;`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []StoredFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// Get fetches one file, enforcing ownership.
func (r *Repository) Get(ctx context.Context, ownerID uuid.UUID, storedName string) (StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + fileColumns + ` FROM files WHERE stored_name = $1 AND owner_id = $2;`

	f, err := scanFile(r.pool.QueryRow(ctx, query, storedName, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredFile{}, ErrFileNotFound
		}
		return StoredFile{}, fmt.Errorf("get file metadata: %w", err)
	}
	return f, nil
}

// Delete removes the row and returns it, enforcing ownership.
func (r *Repository) Delete(ctx context.Context, ownerID uuid.UUID, storedName string) (StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `DELETE FROM files WHERE stored_name = $1 AND owner_id = $2 RETURNING ` + fileColumns + `;`

	f, err := scanFile(r.pool.QueryRow(ctx, query, storedName, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredFile{}, ErrFileNotFound
		}
		return StoredFile{}, fmt.Errorf("delete file metadata: %w", err)
	}
	return f, nil
}

func scanFile(row pgx.Row) (StoredFile, error) {
	var f StoredFile
	err := row.Scan(&f.StoredName, &f.OwnerID, &f.OriginalName, &f.Comment, &f.SizeBytes, &f.ContentType, &f.CreatedAt)
	return f, err
}
