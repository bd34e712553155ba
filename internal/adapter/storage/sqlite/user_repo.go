package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
)

// UserRepo reads the users table.
type UserRepo struct {
	store *Store
}

// NewUserRepository creates a SQLite-backed UserRepository.
func NewUserRepository(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

var _ ports.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := r.store.db.QueryRowContext(ctx,
		`SELECT id, username, email, mobile FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Mobile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts or refreshes a user row, for seeding single-node deployments and tests.
func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	err := retryOnBusy(ctx, func() error {
		_, err := r.store.db.ExecContext(ctx,
			`INSERT INTO users (id, username, email, mobile, created_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET username = excluded.username, email = excluded.email, mobile = excluded.mobile`,
			u.ID, u.Username, u.Email, u.Mobile, formatTime(time.Now()),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
