package service

import (
	"context"
	"errors"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
)

// Reasons reported for ignored deliveries.
const (
	ReasonUnhandledEventType = "unhandled event type"
	ReasonPaymentNotSettled  = "payment not settled"
	ReasonForeignProduct     = "product type not fulfilled here"
	ReasonMissingCustomer    = "session has no customer"
)

// EventRouterImpl implements ports.EventRouter.
type EventRouterImpl struct {
	catalog      domain.Catalog
	materializer ports.OrderMaterializer
	log          zerolog.Logger
}

// NewEventRouter creates a router that hands paid sessions of catalog products to materializer.
func NewEventRouter(catalog domain.Catalog, materializer ports.OrderMaterializer, log zerolog.Logger) *EventRouterImpl {
	return &EventRouterImpl{
		catalog:      catalog,
		materializer: materializer,
		log:          logger.Component(log, "event_router"),
	}
}

// Route classifies event. Anything not ours is Ignored so the provider stops retrying it.
func (r *EventRouterImpl) Route(ctx context.Context, event *domain.Event) (*domain.RouteOutcome, error) {
	log := r.log.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	switch event.Type {
	case domain.EventCheckoutSessionCompleted, domain.EventCheckoutSessionAsyncPaymentSucceeded:
	default:
		log.Debug().Msg("event ignored")
		return ignored(ReasonUnhandledEventType), nil
	}

	s := event.Session
	if s == nil {
		return nil, apperror.ErrMalformedPayload(errors.New("checkout event without session"))
	}
	log = log.With().Str("session_id", s.ID).Logger()

	// completed fires before delayed methods settle; async_payment_succeeded follows.
	if event.Type == domain.EventCheckoutSessionCompleted && !s.IsPaid() {
		log.Info().Str("payment_status", s.PaymentStatus).Msg("session completed but unpaid, waiting for async payment")
		return ignored(ReasonPaymentNotSettled), nil
	}

	if pt := s.ProductType(); !r.catalog.Owns(pt) {
		log.Debug().Str("product_type", string(pt)).Msg("foreign product, passing through")
		return ignored(ReasonForeignProduct), nil
	}

	if s.CustomerID == "" {
		log.Warn().Msg("paid session has no customer id, cannot materialize")
		return ignored(ReasonMissingCustomer), nil
	}

	res, err := r.materializer.Materialize(ctx, s.ID, s.CustomerID, s)
	if err != nil {
		return nil, err
	}

	status := domain.RouteDuplicate
	if res.Created {
		status = domain.RouteFulfilled
	}
	return &domain.RouteOutcome{Status: status, Order: res.Order}, nil
}

func ignored(reason string) *domain.RouteOutcome {
	return &domain.RouteOutcome{Status: domain.RouteIgnored, Reason: reason}
}
