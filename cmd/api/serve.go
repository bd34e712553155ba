package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"checkout-fulfillment/config"
	httpHandler "checkout-fulfillment/internal/adapter/http/handler"
	"checkout-fulfillment/internal/adapter/http/middleware"
	stripeProvider "checkout-fulfillment/internal/adapter/provider/stripe"
	pgStorage "checkout-fulfillment/internal/adapter/storage/postgres"
	redisStorage "checkout-fulfillment/internal/adapter/storage/redis"
	sqliteStorage "checkout-fulfillment/internal/adapter/storage/sqlite"
	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/internal/service"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(sigCtx, cfg)
		},
	}
}

// stores bundles the driver-specific repositories.
type stores struct {
	orders  ports.OrderRepository
	users   ports.UserRepository
	audit   ports.AuditRepository
	health  ports.HealthChecker
	closeFn func()
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")
		return &stores{
			orders:  pgStorage.NewOrderRepository(pool, cfg.Database.QueryTimeout),
			users:   pgStorage.NewUserRepository(pool),
			audit:   pgStorage.NewAuditRepository(pool),
			health:  pgStorage.NewHealthCheck(pool),
			closeFn: pool.Close,
		}, nil
	case "sqlite":
		store, err := sqliteStorage.Open(ctx, cfg.SQLite.Path, cfg.SQLite.BusyTimeout, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", store.Path()).Msg("SQLite opened")
		return &stores{
			orders:  sqliteStorage.NewOrderRepository(store),
			users:   sqliteStorage.NewUserRepository(store),
			audit:   sqliteStorage.NewAuditRepository(store),
			health:  sqliteStorage.NewHealthCheck(store),
			closeFn: func() { _ = store.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func catalogFromConfig(products map[string]config.ProductConfig) domain.Catalog {
	catalog := make(domain.Catalog, len(products))
	for name, p := range products {
		t := domain.ProductType(name)
		catalog[t] = domain.Product{
			Type:         t,
			Name:         p.Name,
			Description:  p.Description,
			Amount:       p.Amount,
			Currency:     p.Currency,
			Credentialed: p.Credentialed,
		}
	}
	return catalog
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Checkout Fulfillment")

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.closeFn()
	healthCheckers := []ports.HealthChecker{st.health}

	// Redis is optional: without it there is no order cache and no rate limiting.
	var (
		orderCache     ports.OrderCache
		rateLimitStore *redisStorage.RateLimitStore
	)
	if cfg.Redis.Host != "" {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		orderCache = redisStorage.NewOrderCache(rdb)
		if cfg.RateLimit.Enabled {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis not configured, order cache and rate limiting disabled")
	}

	// Infrastructure services
	encSvc, err := service.NewAESEncryptionService(cfg.Credential.EncryptionKey)
	if err != nil {
		return fmt.Errorf("init encryption service: %w", err)
	}
	issuer, err := service.NewCredentialIssuer(cfg.Credential.Prefix, cfg.Credential.FingerprintKey, log)
	if err != nil {
		return fmt.Errorf("init credential issuer: %w", err)
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(st.audit, log)

	provider, err := stripeProvider.NewClient(stripeProvider.Config{
		SecretKey:         cfg.Stripe.SecretKey,
		APIURL:            cfg.Stripe.APIURL,
		Timeout:           cfg.Stripe.APITimeout,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	}, log)
	if err != nil {
		return fmt.Errorf("init stripe client: %w", err)
	}
	verifier, err := service.NewStripeWebhookVerifier(
		cfg.Stripe.WebhookSecret,
		cfg.Stripe.WebhookTolerance,
		cfg.Stripe.AllowUnsignedWebhooks,
		log,
	)
	if err != nil {
		return fmt.Errorf("init webhook verifier: %w", err)
	}

	// Business services
	catalog := catalogFromConfig(cfg.Products)
	checkoutSvc := service.NewCheckoutService(st.users, provider, catalog, cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL, log)
	materializer := service.NewOrderMaterializer(st.orders, provider, issuer, encSvc, orderCache, auditSvc, catalog, cfg.Redis.OrderTTL, log)
	eventRouter := service.NewEventRouter(catalog, materializer, log)
	querySvc := service.NewOrderQueryService(st.orders, issuer, encSvc, orderCache, log)

	// An operator-maintained copy of the API document overrides the embedded one.
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded from docs/api/openapi.yaml")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		CheckoutSvc:    checkoutSvc,
		Verifier:       verifier,
		EventRouter:    eventRouter,
		OrderQuerySvc:  querySvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		RateLimitRules: middleware.DefaultRateLimitRules(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	// In-flight webhooks finish their transaction before the stores close.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := auditSvc.Drain(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("audit writes still pending at shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}
