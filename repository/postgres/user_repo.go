package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskflow/domain"
	"github.com/fastygo/taskflow/repository"
)

const userColumns = `id, email, name, COALESCE(image_url, ''), created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository mirrors identity-provider profiles into the users table.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Upsert inserts the profile or refreshes the mirrored fields; created_at is
// preserved on conflict.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrUnauthorized
	}

	const query = `
		INSERT INTO users (id, email, name, image_url)
		VALUES (@id, @email, @name, NULLIF(@image_url, ''))
		ON CONFLICT (id) DO UPDATE
		SET email      = EXCLUDED.email,
		    name       = EXCLUDED.name,
		    image_url  = EXCLUDED.image_url,
		    updated_at = NOW()
		RETURNING created_at, updated_at`

	args := pgx.NamedArgs{
		"id":        user.ID,
		"email":     user.Email,
		"name":      user.Name,
		"image_url": user.ImageURL,
	}
	if err := r.pool.QueryRow(ctx, query, args).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}
