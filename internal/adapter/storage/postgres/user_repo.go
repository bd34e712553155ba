package postgres

import (
	"context"
	"errors"
	"fmt"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// UserRepo reads the storefront users table.
type UserRepo struct {
	pool Pool
}

// NewUserRepository creates a PostgreSQL-backed UserRepository.
func NewUserRepository(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

var _ ports.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, mobile FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Mobile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts or refreshes a user row. The storefront owns this table; the
// method exists for seeding and tests.
func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, mobile) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, email = EXCLUDED.email, mobile = EXCLUDED.mobile`,
		u.ID, u.Username, u.Email, u.Mobile,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
