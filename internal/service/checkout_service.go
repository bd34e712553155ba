package service

import (
	"context"
	"errors"
	"fmt"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
)

// CheckoutServiceImpl implements ports.CheckoutService.
// It persists nothing; the order only exists once the provider reports payment.
type CheckoutServiceImpl struct {
	users      ports.UserRepository
	provider   ports.PaymentProvider
	catalog    domain.Catalog
	successURL string
	cancelURL  string
	log        zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	users ports.UserRepository,
	provider ports.PaymentProvider,
	catalog domain.Catalog,
	successURL, cancelURL string,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		users:      users,
		provider:   provider,
		catalog:    catalog,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        logger.Component(log, "checkout"),
	}
}

// StartCheckout creates a provider customer tagged with the user's identity and a hosted
// checkout session for the catalog price of productType. Repeated calls create new sessions.
func (s *CheckoutServiceImpl) StartCheckout(ctx context.Context, userID string, productType domain.ProductType) (*ports.CheckoutResult, error) {
	product, ok := s.catalog.Lookup(productType)
	if !ok {
		return nil, apperror.ErrUnknownProduct(string(productType))
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("loading user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound()
	}

	customerID, err := s.provider.CreateCustomer(ctx, user)
	if err != nil {
		return nil, downstream(err)
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, ports.CheckoutSessionRequest{
		CustomerID: customerID,
		UserID:     user.ID,
		Product:    product,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, downstream(err)
	}

	s.log.Info().
		Str("user_id", user.ID).
		Str("customer_id", customerID).
		Str("session_id", sess.SessionID).
		Str("product_type", string(productType)).
		Msg("checkout session created")

	return &ports.CheckoutResult{RedirectURL: sess.URL, SessionID: sess.SessionID}, nil
}

// downstream keeps provider AppErrors and maps anything else to SYS_002.
func downstream(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrDownstreamUnavailable(err)
}
