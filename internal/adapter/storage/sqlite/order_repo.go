package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"

	"github.com/google/uuid"
)

const orderColumns = `id, external_session_id, user_id, username, email, mobile, customer_id,
	product_type, amount_paid, currency, status,
	COALESCE(credential_enc, ''), COALESCE(credential_hash, ''), created_at`

// OrderRepo stores orders in SQLite.
type OrderRepo struct {
	store *Store
}

// NewOrderRepository creates a SQLite-backed OrderRepository.
func NewOrderRepository(store *Store) *OrderRepo {
	return &OrderRepo{store: store}
}

var _ ports.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) begin(ctx context.Context) (*sql.Tx, error) {
	var tx *sql.Tx
	err := retryOnBusy(ctx, func() error {
		var err error
		tx, err = r.store.db.BeginTx(ctx, nil)
		return err
	})
	return tx, err
}

func (r *OrderRepo) InsertIfAbsent(ctx context.Context, o *domain.Order, beforeCommit ports.BeforeCommit) (bool, *domain.Order, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("begin order tx: %w", err)
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback()
		}
	}()

	var id string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, external_session_id, user_id, username, email, mobile, customer_id,
		    product_type, amount_paid, currency, status, credential_enc, credential_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
		 ON CONFLICT (external_session_id) DO NOTHING
		 RETURNING id`,
		o.ID.String(), o.ExternalSessionID, o.UserID, o.Username, o.Email, o.Mobile, o.CustomerID,
		string(o.ProductType), o.AmountPaid, o.Currency, string(o.Status),
		o.CredentialEnc, o.CredentialHash, formatTime(o.CreatedAt),
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		finished = true
		_ = tx.Rollback()
		existing, findErr := r.FindBySessionID(ctx, o.ExternalSessionID)
		if findErr != nil {
			return false, nil, findErr
		}
		if existing == nil {
			return false, nil, fmt.Errorf("order %s conflicted but is no longer present", o.ExternalSessionID)
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("insert order: %w", err)
	}

	if beforeCommit != nil {
		hashBefore := o.CredentialHash
		if err := beforeCommit(ctx, o); err != nil {
			return false, nil, err
		}
		if o.CredentialHash != hashBefore {
			if _, err := tx.ExecContext(ctx,
				`UPDATE orders SET credential_enc = ?, credential_hash = ? WHERE id = ?`,
				o.CredentialEnc, o.CredentialHash, o.ID.String(),
			); err != nil {
				return false, nil, fmt.Errorf("store credential: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("commit order: %w", err)
	}
	finished = true
	return true, nil, nil
}

func (r *OrderRepo) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE external_session_id = ?`, sessionID)
	return scanOrder(row)
}

func (r *OrderRepo) FindByCredentialHash(ctx context.Context, hash string) (*domain.Order, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE credential_hash = ?`, hash)
	return scanOrder(row)
}

func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	var conditions []string
	var args []any

	if params.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, params.UserID)
	}
	if params.ProductType != nil {
		conditions = append(conditions, "product_type = ?")
		args = append(args, string(*params.ProductType))
	}
	if params.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*params.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	args = append(args, params.PageSize, offset)
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func (r *OrderRepo) Delete(ctx context.Context, sessionID string) (bool, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := r.store.db.ExecContext(ctx, `DELETE FROM orders WHERE external_session_id = ?`, sessionID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                                   domain.Order
		id, productType, status, createdRaw string
	)
	err := row.Scan(
		&id, &o.ExternalSessionID, &o.UserID, &o.Username, &o.Email, &o.Mobile, &o.CustomerID,
		&productType, &o.AmountPaid, &o.Currency, &status,
		&o.CredentialEnc, &o.CredentialHash, &createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if o.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse order id %q: %w", id, err)
	}
	if o.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdRaw, err)
	}
	o.ProductType = domain.ProductType(productType)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
