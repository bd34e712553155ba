package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed:
		return true
	}
	return false
}

// Order is the durable fulfillment record for one paid checkout session.
// ExternalSessionID is unique across all orders.
type Order struct {
	ID                uuid.UUID   `json:"id"`
	ExternalSessionID string      `json:"external_session_id"`
	UserID            string      `json:"user_id"`
	Username          string      `json:"username"`
	Email             string      `json:"email"`
	Mobile            string      `json:"mobile,omitempty"`
	CustomerID        string      `json:"customer_id"`
	ProductType       ProductType `json:"product_type"`
	AmountPaid        int64       `json:"amount_paid"` // minor units
	Currency          string      `json:"currency"`
	Status            OrderStatus `json:"status"`
	Credential        *string     `json:"-"` // plaintext, only set on the request that issued it
	CredentialEnc     string      `json:"-"` // AES-256-GCM
	CredentialHash    string      `json:"-"` // keyed BLAKE2b-256, hex
	CreatedAt         time.Time   `json:"created_at"`
}

// HasCredential returns true if a credential has been issued for this order.
func (o *Order) HasCredential() bool {
	return o.CredentialHash != ""
}

// IsCompleted returns true if the order has been fulfilled.
func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// Redacted returns a copy with the plaintext credential removed.
func (o *Order) Redacted() *Order {
	c := *o
	c.Credential = nil
	return &c
}
