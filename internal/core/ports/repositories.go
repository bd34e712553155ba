package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"

	"checkout-fulfillment/internal/core/domain"
)

// BeforeCommit runs inside the insert transaction, only on the branch that created the row.
// It may set the order's credential fields; the repository persists them before committing.
// A non-nil error rolls the insert back.
type BeforeCommit func(ctx context.Context, order *domain.Order) error

// OrderRepository defines persistence operations for orders.
// The unique index on external_session_id is the only mutual exclusion for fulfillment.
type OrderRepository interface {
	// InsertIfAbsent inserts order unless a row with the same ExternalSessionID exists.
	// created=true means this call wrote the row; otherwise existing holds the stored order
	// and beforeCommit was not called.
	InsertIfAbsent(ctx context.Context, order *domain.Order, beforeCommit BeforeCommit) (created bool, existing *domain.Order, err error)
	// FindBySessionID returns nil, nil when no order exists.
	FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	// FindByCredentialHash returns nil, nil when no order carries the fingerprint.
	FindByCredentialHash(ctx context.Context, hash string) (*domain.Order, error)
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	// Delete returns false when no order matched.
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// OrderListParams holds filter + pagination for listing orders.
type OrderListParams struct {
	UserID      string
	ProductType *domain.ProductType
	Status      *domain.OrderStatus
	Page        int
	PageSize    int
}

// UserRepository reads storefront users.
type UserRepository interface {
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
