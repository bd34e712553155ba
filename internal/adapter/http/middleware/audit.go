package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResourceID lets a handler name the resource an audited write touched
// when it is not part of the route, e.g. the checkout session id.
const CtxAuditResourceID = "audit_resource_id"

// AuditLog creates an audit middleware that records successful write operations.
// Webhook deliveries are audited by their handler, which knows the outcome.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		resourceID := c.Param("sessionId")
		if id := c.GetString(CtxAuditResourceID); id != "" {
			resourceID = id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        c.GetString(CtxSubject),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/checkout/start" && method == http.MethodPost:
		return domain.AuditActionCheckoutStart, "checkout_session"
	case route == "/api/v1/orders/:sessionId" && method == http.MethodDelete:
		return domain.AuditActionOrderDeleted, "order"
	}
	return "", ""
}
