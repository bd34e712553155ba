package handler

import (
	"checkout-fulfillment/internal/adapter/http/dto"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/response"

	"github.com/gin-gonic/gin"
)

// CredentialHandler lets downstream services check a presented credential.
type CredentialHandler struct {
	querySvc ports.OrderQueryService
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(querySvc ports.OrderQueryService) *CredentialHandler {
	return &CredentialHandler{querySvc: querySvc}
}

// Verify handles POST /api/v1/credentials/verify. An unknown credential is a
// normal answer ({valid:false}), not an error.
func (h *CredentialHandler) Verify(c *gin.Context) {
	var req dto.VerifyCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	order, err := h.querySvc.VerifyCredential(c.Request.Context(), req.Credential)
	if err != nil {
		if apperror.HasCode(err, "CRD_002") {
			response.OK(c, dto.VerifyCredentialResponse{Valid: false})
			return
		}
		response.Error(c, err)
		return
	}

	response.OK(c, dto.VerifyCredentialResponse{
		Valid:       true,
		UserID:      order.UserID,
		ProductType: string(order.ProductType),
		SessionID:   order.ExternalSessionID,
	})
}
