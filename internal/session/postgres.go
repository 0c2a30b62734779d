package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 5 * time.Second

// PostgresStore keeps sessions in the sessions table so they survive restarts.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Session, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
SELECT id, owner_id, email, created_at, expires_at
FROM sessions
WHERE id = $1 AND expires_at > $2;`

	var s Session
	err := p.pool.QueryRow(ctx, query, id, p.now()).Scan(&s.ID, &s.OwnerID, &s.Email, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("get session: %w", err)
	}
	return s, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, s Session) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
INSERT INTO sessions (id, owner_id, email, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id)
DO UPDATE SET owner_id = EXCLUDED.owner_id, email = EXCLUDED.email, expires_at = EXCLUDED.expires_at;`

	if _, err := p.pool.Exec(ctx, query, s.ID, s.OwnerID, s.Email, s.CreatedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Destroy(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Sweep deletes expired rows.
func (p *PostgresStore) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1;`, p.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
