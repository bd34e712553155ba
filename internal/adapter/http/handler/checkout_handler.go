package handler

import (
	"checkout-fulfillment/internal/adapter/http/dto"
	"checkout-fulfillment/internal/adapter/http/middleware"
	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckoutHandler serves the storefront's checkout entry point.
type CheckoutHandler struct {
	checkoutSvc ports.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkoutSvc ports.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutSvc: checkoutSvc}
}

// StartCheckout handles POST /checkout/start.
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	var req dto.CheckoutStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	res, err := h.checkoutSvc.StartCheckout(c.Request.Context(), req.UserID, domain.ProductType(req.ProductType))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, res.SessionID)
	response.OK(c, dto.CheckoutStartResponse{
		RedirectURL: res.RedirectURL,
		SessionID:   res.SessionID,
	})
}

// bindError maps a JSON binding failure to a client error.
func bindError(err error) *apperror.AppError {
	if middleware.IsBodyTooLarge(err) {
		return apperror.ErrPayloadTooLarge()
	}
	return apperror.Validation(err.Error())
}
