package service

import (
	"context"
	"fmt"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// orderQueryService implements ports.OrderQueryService.
type orderQueryService struct {
	orders ports.OrderRepository
	issuer ports.CredentialIssuer
	encSvc ports.EncryptionService
	cache  ports.OrderCache // optional
	log    zerolog.Logger
}

// NewOrderQueryService creates the read side for dashboard and downstream consumers.
func NewOrderQueryService(
	orders ports.OrderRepository,
	issuer ports.CredentialIssuer,
	encSvc ports.EncryptionService,
	cache ports.OrderCache,
	log zerolog.Logger,
) ports.OrderQueryService {
	return &orderQueryService{
		orders: orders,
		issuer: issuer,
		encSvc: encSvc,
		cache:  cache,
		log:    logger.Component(log, "order_query"),
	}
}

// ListOrders returns a page of orders. Page defaults to 1 and page size to 20 (max 100).
func (s *orderQueryService) ListOrders(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation("invalid status: must be pending, completed, or failed")
	}

	orders, total, err := s.orders.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return orders, total, nil
}

// GetOrder returns the order for sessionID without its plaintext credential.
func (s *orderQueryService) GetOrder(ctx context.Context, sessionID string) (*domain.Order, error) {
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}
	return order.Redacted(), nil
}

// DeleteOrder removes the order and its cache entry.
// A later redelivery of the same session would materialize it again.
func (s *orderQueryService) DeleteOrder(ctx context.Context, sessionID string) error {
	deleted, err := s.orders.Delete(ctx, sessionID)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !deleted {
		return apperror.ErrOrderNotFound()
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, sessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("order cache eviction failed")
		}
	}
	s.log.Info().Str("session_id", sessionID).Msg("order deleted")
	return nil
}

// VerifyCredential resolves a presented credential to its completed order.
// Unknown credentials return CRD_002.
func (s *orderQueryService) VerifyCredential(ctx context.Context, credential string) (*domain.Order, error) {
	if credential == "" {
		return nil, apperror.ErrInvalidCredential()
	}
	order, err := s.orders.FindByCredentialHash(ctx, s.issuer.Fingerprint(credential))
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if order == nil || !order.IsCompleted() {
		return nil, apperror.ErrInvalidCredential()
	}
	return order.Redacted(), nil
}

// RevealCredential decrypts the credential stored for sessionID.
func (s *orderQueryService) RevealCredential(ctx context.Context, sessionID string) (string, error) {
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		return "", apperror.InternalError(err)
	}
	if order == nil {
		return "", apperror.ErrOrderNotFound()
	}
	if order.CredentialEnc == "" {
		return "", apperror.Validation(fmt.Sprintf("order %s has no credential", sessionID))
	}

	credential, err := s.encSvc.Decrypt(order.CredentialEnc)
	if err != nil {
		return "", apperror.ErrEncryptionFailure(err)
	}
	return credential, nil
}
