package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const orderColumns = `id, external_session_id, user_id, username, email, mobile, customer_id,
	product_type, amount_paid, currency, status,
	COALESCE(credential_enc, ''), COALESCE(credential_hash, ''), created_at`

// OrderRepo stores orders in PostgreSQL.
type OrderRepo struct {
	pool         Pool
	queryTimeout time.Duration
}

// NewOrderRepository creates a PostgreSQL-backed OrderRepository.
// queryTimeout bounds every call; zero disables the bound.
func NewOrderRepository(pool Pool, queryTimeout time.Duration) *OrderRepo {
	return &OrderRepo{pool: pool, queryTimeout: queryTimeout}
}

var _ ports.OrderRepository = (*OrderRepo)(nil)

func (r *OrderRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// InsertIfAbsent relies on orders_external_session_id_key. A concurrent insert of the
// same session blocks on the index until the first transaction ends, so beforeCommit
// runs for exactly one caller.
func (r *OrderRepo) InsertIfAbsent(ctx context.Context, o *domain.Order, beforeCommit ports.BeforeCommit) (bool, *domain.Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("begin order tx: %w", err)
	}
	finished := false
	defer func() {
		if !finished {
			_ = tx.Rollback(ctx)
		}
	}()

	var id string
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, external_session_id, user_id, username, email, mobile, customer_id,
		    product_type, amount_paid, currency, status, credential_enc, credential_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), NULLIF($13, ''), $14)
		 ON CONFLICT (external_session_id) DO NOTHING
		 RETURNING id`,
		o.ID, o.ExternalSessionID, o.UserID, o.Username, o.Email, o.Mobile, o.CustomerID,
		string(o.ProductType), o.AmountPaid, o.Currency, string(o.Status),
		o.CredentialEnc, o.CredentialHash, o.CreatedAt,
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		finished = true
		_ = tx.Rollback(ctx)
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
			_, err := tx.Exec(ctx,
				`UPDATE orders SET credential_enc = $1, credential_hash = $2 WHERE id = $3`,
				o.CredentialEnc, o.CredentialHash, o.ID,
			)
			if err != nil {
				return false, nil, fmt.Errorf("store credential: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("commit order: %w", err)
	}
	finished = true
	return true, nil, nil
}

func (r *OrderRepo) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE external_session_id = $1`, sessionID)
	return scanOrder(row)
}

func (r *OrderRepo) FindByCredentialHash(ctx context.Context, hash string) (*domain.Order, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE credential_hash = $1`, hash)
	return scanOrder(row)
}

func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var conditions []string
	var args []any
	argIdx := 1

	if params.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, params.UserID)
		argIdx++
	}
	if params.ProductType != nil {
		conditions = append(conditions, fmt.Sprintf("product_type = $%d", argIdx))
		args = append(args, string(*params.ProductType))
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
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
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE external_session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var productType, status string
	err := row.Scan(
		&o.ID, &o.ExternalSessionID, &o.UserID, &o.Username, &o.Email, &o.Mobile, &o.CustomerID,
		&productType, &o.AmountPaid, &o.Currency, &status,
		&o.CredentialEnc, &o.CredentialHash, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.ProductType = domain.ProductType(productType)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
