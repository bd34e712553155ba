package handler

import (
	"math"
	"strconv"
	"time"

	"checkout-fulfillment/internal/adapter/http/dto"
	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler serves the dashboard's order endpoints.
type OrderHandler struct {
	querySvc ports.OrderQueryService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(querySvc ports.OrderQueryService) *OrderHandler {
	return &OrderHandler{querySvc: querySvc}
}

// ListOrders handles GET /api/v1/orders.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.OrderListParams{
		UserID:   c.Query("user_id"),
		Page:     page,
		PageSize: pageSize,
	}
	if pt := c.Query("product_type"); pt != "" {
		productType := domain.ProductType(pt)
		params.ProductType = &productType
	}
	if s := c.Query("status"); s != "" {
		status := domain.OrderStatus(s)
		params.Status = &status
	}

	orders, total, err := h.querySvc.ListOrders(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}

	response.OK(c, dto.OrderListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// GetOrder handles GET /api/v1/orders/:sessionId.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	order, err := h.querySvc.GetOrder(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

// DeleteOrder handles DELETE /api/v1/orders/:sessionId.
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	if err := h.querySvc.DeleteOrder(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "deleted": true})
}

// RevealCredential handles GET /api/v1/orders/:sessionId/credential.
func (h *OrderHandler) RevealCredential(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	credential, err := h.querySvc.RevealCredential(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, dto.CredentialResponse{SessionID: sessionID, Credential: credential})
}

func sessionParam(c *gin.Context) (string, bool) {
	sessionID := c.Param("sessionId")
	if !dto.ValidSessionID(sessionID) {
		response.Error(c, apperror.Validation("invalid session id"))
		return "", false
	}
	return sessionID, true
}

func toOrderResponse(o *domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:            o.ID.String(),
		SessionID:     o.ExternalSessionID,
		UserID:        o.UserID,
		Username:      o.Username,
		Email:         o.Email,
		Mobile:        o.Mobile,
		CustomerID:    o.CustomerID,
		ProductType:   string(o.ProductType),
		AmountPaid:    o.AmountPaid,
		Currency:      o.Currency,
		Status:        string(o.Status),
		HasCredential: o.HasCredential(),
		CreatedAt:     o.CreatedAt.UTC().Format(time.RFC3339),
	}
}
