package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// OrderCache implements ports.OrderCache using Redis. Entries are a fast path in
// front of the order table and never hold the plaintext credential or its ciphertext.
type OrderCache struct {
	client *goredis.Client
	prefix string
}

// NewOrderCache creates a new Redis-backed order cache.
func NewOrderCache(client *goredis.Client) *OrderCache {
	return &OrderCache{
		client: client,
		prefix: "order:",
	}
}

var _ ports.OrderCache = (*OrderCache)(nil)

// cachedOrder is the stored snapshot. domain.Order hides its credential fields
// from JSON, so the fingerprint is carried explicitly.
type cachedOrder struct {
	ID                uuid.UUID          `json:"id"`
	ExternalSessionID string             `json:"external_session_id"`
	UserID            string             `json:"user_id"`
	Username          string             `json:"username"`
	Email             string             `json:"email"`
	Mobile            string             `json:"mobile,omitempty"`
	CustomerID        string             `json:"customer_id"`
	ProductType       domain.ProductType `json:"product_type"`
	AmountPaid        int64              `json:"amount_paid"`
	Currency          string             `json:"currency"`
	Status            domain.OrderStatus `json:"status"`
	CredentialHash    string             `json:"credential_hash,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

func (c *OrderCache) key(sessionID string) string {
	return c.prefix + sessionID
}

// Get returns nil, nil on a miss.
func (c *OrderCache) Get(ctx context.Context, sessionID string) (*domain.Order, error) {
	val, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis order get: %w", err)
	}

	var snap cachedOrder
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("decode cached order: %w", err)
	}
	return &domain.Order{
		ID:                snap.ID,
		ExternalSessionID: snap.ExternalSessionID,
		UserID:            snap.UserID,
		Username:          snap.Username,
		Email:             snap.Email,
		Mobile:            snap.Mobile,
		CustomerID:        snap.CustomerID,
		ProductType:       snap.ProductType,
		AmountPaid:        snap.AmountPaid,
		Currency:          snap.Currency,
		Status:            snap.Status,
		CredentialHash:    snap.CredentialHash,
		CreatedAt:         snap.CreatedAt,
	}, nil
}

// Set stores a snapshot of order under its session id with TTL.
func (c *OrderCache) Set(ctx context.Context, order *domain.Order, ttl time.Duration) error {
	payload, err := json.Marshal(cachedOrder{
		ID:                order.ID,
		ExternalSessionID: order.ExternalSessionID,
		UserID:            order.UserID,
		Username:          order.Username,
		Email:             order.Email,
		Mobile:            order.Mobile,
		CustomerID:        order.CustomerID,
		ProductType:       order.ProductType,
		AmountPaid:        order.AmountPaid,
		Currency:          order.Currency,
		Status:            order.Status,
		CredentialHash:    order.CredentialHash,
		CreatedAt:         order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if err := c.client.Set(ctx, c.key(order.ExternalSessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis order set: %w", err)
	}
	return nil
}

// Delete evicts the entry; a missing key is not an error.
func (c *OrderCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis order delete: %w", err)
	}
	return nil
}
