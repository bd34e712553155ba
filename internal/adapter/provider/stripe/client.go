// Package stripe adapts the Stripe API to ports.PaymentProvider.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/pkg/apperror"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 10 * time.Second

// Config holds provider connection settings.
type Config struct {
	SecretKey         string
	APIURL            string // empty means api.stripe.com
	Timeout           time.Duration
	MaxNetworkRetries int64
}

// Client implements ports.PaymentProvider.
type Client struct {
	api     *client.API
	timeout time.Duration
	log     zerolog.Logger
}

var _ ports.PaymentProvider = (*Client)(nil)

// NewClient creates a Stripe client with its own backends so tests and
// multiple instances never share stripe-go's global state.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log = logger.Component(log, "stripe_client")

	backendCfg := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     leveledLogger{log: log},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripego.String(cfg.APIURL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendCfg),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendCfg),
	})

	return &Client{api: api, timeout: cfg.Timeout, log: log}, nil
}

// CreateCustomer creates a customer whose metadata carries the user's identity.
func (c *Client) CreateCustomer(ctx context.Context, user *domain.User) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripego.CustomerParams{
		Email: stripego.String(user.Email),
		Name:  stripego.String(user.Username),
	}
	if user.Mobile != "" {
		params.Phone = stripego.String(user.Mobile)
	}
	params.Context = ctx
	for k, v := range user.CustomerMetadata() {
		params.AddMetadata(k, v)
	}

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", c.mapError("create customer", err, false)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a one-off payment session priced from the catalog product.
func (c *Client) CreateCheckoutSession(ctx context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSessionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	productData := &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripego.String(req.Product.Name),
	}
	if req.Product.Description != "" {
		productData.Description = stripego.String(req.Product.Description)
	}

	params := &stripego.CheckoutSessionParams{
		Customer:          stripego.String(req.CustomerID),
		ClientReferenceID: stripego.String(req.UserID),
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(req.SuccessURL),
		CancelURL:         stripego.String(req.CancelURL),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripego.String(req.Product.Currency),
				UnitAmount:  stripego.Int64(req.Product.Amount),
				ProductData: productData,
			},
			Quantity: stripego.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata(domain.MetaProductType, string(req.Product.Type))
	params.AddMetadata(domain.MetaUserID, req.UserID)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, c.mapError("create checkout session", err, false)
	}
	return &ports.CheckoutSessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// GetCustomer reads the customer record back. Missing or deleted customers are CUS_001.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*domain.CustomerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripego.CustomerParams{}
	params.Context = ctx

	cust, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, c.mapError("get customer", err, true)
	}
	if cust.Deleted {
		return nil, apperror.ErrCustomerLookupFailed(fmt.Errorf("customer %s is deleted", customerID))
	}

	return &domain.CustomerRecord{
		ID:       cust.ID,
		Email:    cust.Email,
		Metadata: cust.Metadata,
	}, nil
}

// mapError turns provider failures into SYS_002. On customer lookups a missing
// resource is CUS_001 instead.
func (c *Client) mapError(op string, err error, customerLookup bool) error {
	var serr *stripego.Error
	if errors.As(err, &serr) {
		missing := serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripego.ErrorCodeResourceMissing
		if customerLookup && missing {
			return apperror.ErrCustomerLookupFailed(fmt.Errorf("%s: %w", op, err))
		}
		c.log.Warn().
			Str("op", op).
			Int("status", serr.HTTPStatusCode).
			Str("code", string(serr.Code)).
			Msg("stripe request failed")
	} else {
		c.log.Warn().Err(err).Str("op", op).Msg("stripe request failed")
	}
	return apperror.ErrDownstreamUnavailable(fmt.Errorf("%s: %w", op, err))
}
