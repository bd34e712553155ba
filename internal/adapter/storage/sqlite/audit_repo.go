package sqlite

import (
	"context"
	"fmt"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
)

type auditRepo struct {
	store *Store
}

// NewAuditRepository creates a SQLite-backed AuditRepository.
func NewAuditRepository(store *Store) ports.AuditRepository {
	return &auditRepo{store: store}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	err := retryOnBusy(ctx, func() error {
		_, err := r.store.db.ExecContext(ctx,
			`INSERT INTO audit_logs (id, actor, action, resource_type, resource_id, details, ip_address, created_at)
			 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
			log.ID.String(), log.Actor, string(log.Action), log.ResourceType,
			log.ResourceID, log.Details, log.IPAddress, formatTime(log.CreatedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
