package handler

import (
	"checkout-fulfillment/internal/adapter/http/middleware"
	redisStore "checkout-fulfillment/internal/adapter/storage/redis"
	"checkout-fulfillment/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CheckoutSvc    ports.CheckoutService
	Verifier       ports.WebhookVerifier
	EventRouter    ports.EventRouter
	OrderQuerySvc  ports.OrderQueryService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	CORSOrigins    []string
	TrustedProxies []string // nil = ClientIP is always the socket peer
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Error().Err(err).Msg("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := deps.RateLimitRules
	if rules == nil {
		rules = middleware.DefaultRateLimitRules(0, 0)
	}
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Storefront (browser, CORS) ---
	checkoutHandler := NewCheckoutHandler(deps.CheckoutSvc)
	checkout := r.Group("/checkout", middleware.CORS(deps.CORSOrigins))
	{
		checkout.OPTIONS("/start", func(c *gin.Context) { c.Next() })
		checkout.POST("/start", rl(middleware.GroupCheckout), checkoutHandler.StartCheckout)
	}

	// --- Provider webhook (signature-authenticated) ---
	webhookHandler := NewWebhookHandler(deps.Verifier, deps.EventRouter, deps.AuditSvc, deps.Logger)
	r.POST("/webhook", webhookHandler.Receive)

	v1 := r.Group("/api/v1")

	// --- Downstream credential checks ---
	credentialHandler := NewCredentialHandler(deps.OrderQuerySvc)
	v1.POST("/credentials/verify", rl(middleware.GroupCredentialsVerify), credentialHandler.Verify)

	// --- Dashboard (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	orderHandler := NewOrderHandler(deps.OrderQuerySvc)
	orders := v1.Group("/orders", jwtAuth, rl(middleware.GroupDashboard))
	{
		orders.GET("", orderHandler.ListOrders)
		orders.GET("/:sessionId", orderHandler.GetOrder)
		orders.DELETE("/:sessionId", orderHandler.DeleteOrder)
		orders.GET("/:sessionId/credential", orderHandler.RevealCredential)
	}

	return r
}
