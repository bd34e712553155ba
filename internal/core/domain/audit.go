package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCheckoutStart     AuditAction = "CHECKOUT_START"
	AuditActionWebhookReceived   AuditAction = "WEBHOOK_RECEIVED"
	AuditActionOrderMaterialized AuditAction = "ORDER_MATERIALIZED"
	AuditActionOrderDeleted      AuditAction = "ORDER_DELETED"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Actor        string      `json:"actor,omitempty"` // dashboard token subject, empty for provider calls
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
