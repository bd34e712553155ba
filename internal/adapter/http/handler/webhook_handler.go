package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"checkout-fulfillment/internal/adapter/http/middleware"
	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"
	"checkout-fulfillment/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderStripeSignature carries the provider's HMAC signature.
const HeaderStripeSignature = "Stripe-Signature"

// WebhookHandler receives provider deliveries.
type WebhookHandler struct {
	verifier ports.WebhookVerifier
	router   ports.EventRouter
	auditSvc ports.AuditService // nil = no audit trail
	log      zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier ports.WebhookVerifier, router ports.EventRouter, auditSvc ports.AuditService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		router:   router,
		auditSvc: auditSvc,
		log:      logger.Component(log, "webhook_handler"),
	}
}

// Receive handles POST /webhook. The raw body is verified before any parsing.
// 2xx tells the provider to stop; 4xx/5xx trigger a redelivery, which is safe.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.Error(c, apperror.ErrMalformedPayload(err))
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader(HeaderStripeSignature))
	if err != nil {
		h.log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("webhook rejected")
		h.audit(c, nil, "rejected", "", err)
		response.Error(c, err)
		return
	}

	log := h.log.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	// A provider disconnect must not abort a fulfillment already in progress.
	outcome, err := h.router.Route(context.WithoutCancel(c.Request.Context()), event)
	if err != nil {
		if apperror.IsRetryable(err) {
			log.Error().Err(err).Msg("webhook processing failed, provider will redeliver")
		} else {
			log.Warn().Err(err).Msg("webhook processing failed")
		}
		h.audit(c, event, "failed", "", err)
		response.Error(c, err)
		return
	}

	log.Info().Str("outcome", string(outcome.Status)).Str("reason", outcome.Reason).Msg("webhook handled")
	h.audit(c, event, string(outcome.Status), outcome.Reason, nil)
	response.Ack(c, string(outcome.Status), outcome.Reason)
}

func (h *WebhookHandler) audit(c *gin.Context, event *domain.Event, outcome, reason string, cause error) {
	if h.auditSvc == nil {
		return
	}

	details := map[string]string{"outcome": outcome}
	if reason != "" {
		details["reason"] = reason
	}
	var appErr *apperror.AppError
	if errors.As(cause, &appErr) {
		details["error_code"] = appErr.Code
	}

	entry := &domain.AuditLog{
		Action:       domain.AuditActionWebhookReceived,
		ResourceType: "webhook_event",
		IPAddress:    c.ClientIP(),
	}
	if event != nil {
		entry.ResourceID = event.ID
		details["event_type"] = event.Type
		if event.Session != nil {
			details["session_id"] = event.Session.ID
		}
	}
	raw, _ := json.Marshal(details)
	entry.Details = string(raw)

	h.auditSvc.Log(c.Request.Context(), entry)
}
