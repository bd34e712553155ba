package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"checkout-fulfillment/internal/core/domain"
)

// --- Infrastructure Ports ---

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService handles JWT token operations for the order dashboard.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// PaymentProvider is the external checkout provider.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, user *domain.User) (customerID string, err error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResult, error)
	// GetCustomer returns an *apperror.AppError with code CUS_001 when the customer does not exist.
	GetCustomer(ctx context.Context, customerID string) (*domain.CustomerRecord, error)
}

// CheckoutSessionRequest describes a hosted checkout session for one catalog product.
type CheckoutSessionRequest struct {
	CustomerID string
	UserID     string
	Product    domain.Product
	SuccessURL string
	CancelURL  string
}

// CheckoutSessionResult is the provider's answer to a session creation.
type CheckoutSessionResult struct {
	SessionID string
	URL       string
}

// WebhookVerifier authenticates and parses an inbound provider delivery.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (*domain.Event, error)
}

// CredentialIssuer mints access credentials and their lookup fingerprints.
type CredentialIssuer interface {
	Issue(ctx context.Context, order *domain.Order) (string, error)
	Fingerprint(credential string) string
}

// OrderCache is the Redis-layer read-through for materialized orders (fast path only).
type OrderCache interface {
	Get(ctx context.Context, sessionID string) (*domain.Order, error) // nil on miss
	Set(ctx context.Context, order *domain.Order, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

// --- Service Ports (Business Logic) ---

// CheckoutService starts hosted checkout sessions.
type CheckoutService interface {
	StartCheckout(ctx context.Context, userID string, productType domain.ProductType) (*CheckoutResult, error)
}

// CheckoutResult is returned to the storefront.
type CheckoutResult struct {
	RedirectURL string
	SessionID   string
}

// EventRouter decides what a verified event means for fulfillment.
type EventRouter interface {
	Route(ctx context.Context, event *domain.Event) (*domain.RouteOutcome, error)
}

// OrderMaterializer turns a paid session into exactly one order.
type OrderMaterializer interface {
	Materialize(ctx context.Context, sessionID, customerID string, session *domain.CheckoutSession) (*MaterializeResult, error)
}

// MaterializeResult reports the order and whether this call created it.
type MaterializeResult struct {
	Order   *domain.Order
	Created bool
}

// OrderQueryService is the read side used by the dashboard and downstream services.
type OrderQueryService interface {
	ListOrders(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	GetOrder(ctx context.Context, sessionID string) (*domain.Order, error)
	DeleteOrder(ctx context.Context, sessionID string) error
	VerifyCredential(ctx context.Context, credential string) (*domain.Order, error)
	// RevealCredential decrypts the stored credential of a credentialed order.
	RevealCredential(ctx context.Context, sessionID string) (string, error)
}

// AuditService records audited actions without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
