package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecoguard/ecoguard/internal/auth"
	"github.com/ecoguard/ecoguard/internal/platform/db"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of users ordered by creation time.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]auth.User, int, error) {
	const where = `WHERE $1 = '' OR lower(email) LIKE $2 ESCAPE '\' OR lower(username) LIKE $2 ESCAPE '\'`
	pattern := likePattern(filter.Query)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, filter.Query, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+auth.PublicColumns+` FROM users `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, filter.Query, pattern, filter.PerPage, filter.offset())
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		user, err := auth.ScanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("users: rows: %w", err)
	}
	return out, total, nil
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (auth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return auth.User{}, httpx.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+auth.PublicColumns+` FROM users WHERE id = $1`, id)
	user, err := auth.ScanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, httpx.ErrNotFound
		}
		return auth.User{}, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

// SetActive activates or deactivates an account.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// SetRole changes an account's role.
func (r *Repository) SetRole(ctx context.Context, id string, role auth.Role) error {
	return r.update(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
}

func (r *Repository) update(ctx context.Context, query, id string, value any) error {
	if _, err := uuid.Parse(id); err != nil {
		return httpx.ErrNotFound
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id, value)
		if err != nil {
			return fmt.Errorf("users: update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return httpx.ErrNotFound
		}
		return nil
	})
}
