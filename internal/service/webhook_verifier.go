package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultWebhookTolerance is the maximum age of a signed delivery.
const DefaultWebhookTolerance = 5 * time.Minute

// StripeWebhookVerifier implements ports.WebhookVerifier for Stripe-Signature headers.
type StripeWebhookVerifier struct {
	secret    string
	tolerance time.Duration
	log       zerolog.Logger
}

// NewStripeWebhookVerifier binds the verifier to a signing secret.
// An empty secret is only accepted with allowUnsigned, and every delivery is then parsed unverified.
func NewStripeWebhookVerifier(secret string, tolerance time.Duration, allowUnsigned bool, log zerolog.Logger) (*StripeWebhookVerifier, error) {
	log = logger.Component(log, "webhook_verifier")
	if secret == "" {
		if !allowUnsigned {
			return nil, errors.New("webhook signing secret is empty")
		}
		log.Warn().Msg("webhook signature verification DISABLED; unsigned deliveries will be accepted")
	}
	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}
	return &StripeWebhookVerifier{secret: secret, tolerance: tolerance, log: log}, nil
}

// Verify authenticates payload against signatureHeader and parses it.
// Signature failures are SEC_001; bodies that cannot be parsed are WH_001.
func (v *StripeWebhookVerifier) Verify(payload []byte, signatureHeader string) (*domain.Event, error) {
	var evt stripe.Event

	if v.secret == "" {
		v.log.Warn().Msg("accepting unsigned webhook delivery")
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, apperror.ErrMalformedPayload(err)
		}
	} else {
		var err error
		evt, err = webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
			Tolerance:                v.tolerance,
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			if isSignatureError(err) {
				return nil, apperror.WrapInvalidSignature(err)
			}
			return nil, apperror.ErrMalformedPayload(err)
		}
	}

	if evt.Type == "" {
		return nil, apperror.ErrMalformedPayload(errors.New("event type missing"))
	}
	return toDomainEvent(&evt)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld) ||
		errors.Is(err, webhook.ErrInvalidHeader)
}

func toDomainEvent(evt *stripe.Event) (*domain.Event, error) {
	out := &domain.Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: evt.Created,
	}
	if !strings.HasPrefix(out.Type, "checkout.session.") {
		return out, nil
	}

	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("%s event has no data object", out.Type))
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		return nil, apperror.ErrMalformedPayload(fmt.Errorf("decoding checkout session: %w", err))
	}
	if cs.ID == "" {
		return nil, apperror.ErrMalformedPayload(errors.New("checkout session id missing"))
	}

	session := &domain.CheckoutSession{
		ID:                cs.ID,
		ClientReferenceID: cs.ClientReferenceID,
		PaymentStatus:     string(cs.PaymentStatus),
		AmountTotal:       cs.AmountTotal,
		Currency:          string(cs.Currency),
		CustomerEmail:     cs.CustomerEmail,
		Metadata:          cs.Metadata,
	}
	if cs.Customer != nil {
		session.CustomerID = cs.Customer.ID
	}
	if session.CustomerEmail == "" && cs.CustomerDetails != nil {
		session.CustomerEmail = cs.CustomerDetails.Email
	}
	if session.Metadata == nil {
		session.Metadata = map[string]string{}
	}
	out.Session = session
	return out, nil
}
