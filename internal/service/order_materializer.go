package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultOrderCacheTTL bounds how long a materialized order stays in the fast path.
const DefaultOrderCacheTTL = 24 * time.Hour

// OrderMaterializerImpl implements ports.OrderMaterializer.
// It holds no locks: concurrent deliveries for one session are serialized by the
// store's unique index on external_session_id.
type OrderMaterializerImpl struct {
	orders   ports.OrderRepository
	provider ports.PaymentProvider
	issuer   ports.CredentialIssuer
	encSvc   ports.EncryptionService
	cache    ports.OrderCache // optional
	audit    ports.AuditService
	catalog  domain.Catalog
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewOrderMaterializer creates a new materializer. cache may be nil.
func NewOrderMaterializer(
	orders ports.OrderRepository,
	provider ports.PaymentProvider,
	issuer ports.CredentialIssuer,
	encSvc ports.EncryptionService,
	cache ports.OrderCache,
	audit ports.AuditService,
	catalog domain.Catalog,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *OrderMaterializerImpl {
	if cacheTTL <= 0 {
		cacheTTL = DefaultOrderCacheTTL
	}
	return &OrderMaterializerImpl{
		orders:   orders,
		provider: provider,
		issuer:   issuer,
		encSvc:   encSvc,
		cache:    cache,
		audit:    audit,
		catalog:  catalog,
		cacheTTL: cacheTTL,
		log:      logger.Component(log, "order_materializer"),
	}
}

// Materialize creates the order for sessionID exactly once. Repeated and concurrent calls
// return the stored order with Created=false and never issue a second credential.
func (m *OrderMaterializerImpl) Materialize(ctx context.Context, sessionID, customerID string, session *domain.CheckoutSession) (*ports.MaterializeResult, error) {
	log := m.log.With().Str("session_id", sessionID).Logger()

	// Step 1: Fast paths. They only spare redundant provider calls on redelivery.
	if cached := m.cachedOrder(ctx, sessionID); cached != nil {
		log.Debug().Msg("order found in cache")
		return &ports.MaterializeResult{Order: cached}, nil
	}
	existing, err := m.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("looking up order: %w", err))
	}
	if existing != nil {
		log.Info().Str("order_id", existing.ID.String()).Msg("order already materialized")
		return &ports.MaterializeResult{Order: existing}, nil
	}

	// Step 2: Identity comes from the provider customer, never from the session.
	customer, err := m.provider.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, downstream(err)
	}
	userID := customer.UserID()
	if userID == "" {
		return nil, apperror.ErrCustomerLookupFailed(fmt.Errorf("customer %s has no %s metadata", customerID, domain.MetaUserID))
	}
	if claimed := session.Metadata[domain.MetaUserID]; claimed != "" && claimed != userID {
		log.Warn().
			Str("customer_user_id", userID).
			Str("session_user_id", claimed).
			Msg("session metadata disagrees with customer record, using customer record")
	}

	// Step 3: Build the order.
	identity := customer.Identity()
	if identity.Email == "" {
		identity.Email = customer.Email
	}
	order := &domain.Order{
		ID:                uuid.New(),
		ExternalSessionID: sessionID,
		UserID:            identity.ID,
		Username:          identity.Username,
		Email:             identity.Email,
		Mobile:            identity.Mobile,
		CustomerID:        customerID,
		ProductType:       session.ProductType(),
		AmountPaid:        session.AmountTotal,
		Currency:          session.Currency,
		Status:            domain.OrderStatusCompleted,
		CreatedAt:         time.Now().UTC(),
	}

	// Step 4: Insert-if-absent. The credential is issued inside the winning transaction only.
	var beforeCommit ports.BeforeCommit
	if m.catalog.RequiresCredential(order.ProductType) {
		beforeCommit = m.attachCredential
	}
	created, stored, err := m.orders.InsertIfAbsent(ctx, order, beforeCommit)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("inserting order: %w", err))
	}
	if !created {
		log.Info().Str("order_id", stored.ID.String()).Msg("concurrent delivery won the insert, returning stored order")
		return &ports.MaterializeResult{Order: stored}, nil
	}

	// Step 5: Best-effort side effects after commit.
	m.cacheOrder(ctx, order)
	m.recordAudit(ctx, order)

	log.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID).
		Str("product_type", string(order.ProductType)).
		Bool("credential_issued", order.HasCredential()).
		Msg("order materialized")

	return &ports.MaterializeResult{Order: order, Created: true}, nil
}

// attachCredential runs inside the insert transaction.
func (m *OrderMaterializerImpl) attachCredential(ctx context.Context, order *domain.Order) error {
	credential, err := m.issuer.Issue(ctx, order)
	if err != nil {
		return apperror.ErrCredentialIssuance(err)
	}
	enc, err := m.encSvc.Encrypt(credential)
	if err != nil {
		return apperror.ErrCredentialIssuance(fmt.Errorf("encrypting credential: %w", err))
	}
	order.Credential = &credential
	order.CredentialEnc = enc
	order.CredentialHash = m.issuer.Fingerprint(credential)
	return nil
}

func (m *OrderMaterializerImpl) cachedOrder(ctx context.Context, sessionID string) *domain.Order {
	if m.cache == nil {
		return nil
	}
	o, err := m.cache.Get(ctx, sessionID)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", sessionID).Msg("order cache read failed")
		return nil
	}
	return o
}

func (m *OrderMaterializerImpl) cacheOrder(ctx context.Context, order *domain.Order) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, order.Redacted(), m.cacheTTL); err != nil {
		m.log.Warn().Err(err).Str("session_id", order.ExternalSessionID).Msg("order cache write failed")
	}
}

func (m *OrderMaterializerImpl) recordAudit(ctx context.Context, order *domain.Order) {
	details, _ := json.Marshal(map[string]interface{}{
		"order_id":          order.ID.String(),
		"user_id":           order.UserID,
		"product_type":      order.ProductType,
		"amount_paid":       order.AmountPaid,
		"currency":          order.Currency,
		"credential_issued": order.HasCredential(),
	})
	m.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionOrderMaterialized,
		ResourceType: "order",
		ResourceID:   order.ExternalSessionID,
		Details:      string(details),
		CreatedAt:    time.Now().UTC(),
	})
}
