package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig             `mapstructure:"server"`
	Storage    StorageConfig            `mapstructure:"storage"`
	Database   DatabaseConfig           `mapstructure:"database"`
	SQLite     SQLiteConfig             `mapstructure:"sqlite"`
	Redis      RedisConfig              `mapstructure:"redis"`
	Stripe     StripeConfig             `mapstructure:"stripe"`
	JWT        JWTConfig                `mapstructure:"jwt"`
	Credential CredentialConfig         `mapstructure:"credential"`
	Products   map[string]ProductConfig `mapstructure:"products"`
	RateLimit  RateLimitConfig          `mapstructure:"rate_limit"`
	Log        LogConfig                `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honoured. Empty trusts none.
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the order store driver.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type SQLiteConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	OrderTTL time.Duration `mapstructure:"order_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StripeConfig struct {
	SecretKey             string        `mapstructure:"secret_key"`
	WebhookSecret         string        `mapstructure:"webhook_secret"`
	AllowUnsignedWebhooks bool          `mapstructure:"allow_unsigned_webhooks"`
	APIURL                string        `mapstructure:"api_url"` // empty means the stripe-go default
	SuccessURL            string        `mapstructure:"success_url"`
	CancelURL             string        `mapstructure:"cancel_url"`
	APITimeout            time.Duration `mapstructure:"api_timeout"`
	MaxNetworkRetries     int64         `mapstructure:"max_network_retries"`
	WebhookTolerance      time.Duration `mapstructure:"webhook_tolerance"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type CredentialConfig struct {
	Prefix         string `mapstructure:"prefix"`
	EncryptionKey  string `mapstructure:"encryption_key"`  // 32-byte hex-encoded key for AES-256
	FingerprintKey string `mapstructure:"fingerprint_key"` // hex-encoded BLAKE2b key, up to 64 bytes
}

// ProductConfig is one entry of the server-side catalog. Prices never come from the client.
type ProductConfig struct {
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	Amount       int64  `mapstructure:"amount"` // minor units
	Currency     string `mapstructure:"currency"`
	Credentialed bool   `mapstructure:"credentialed"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("storage.driver must be postgres or sqlite, got %q", c.Storage.Driver)
	}
	for _, p := range c.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is neither an IP nor a CIDR", p)
			}
		}
	}
	if c.Stripe.WebhookSecret == "" && !c.Stripe.AllowUnsignedWebhooks {
		return errors.New("stripe.webhook_secret is required (set stripe.allow_unsigned_webhooks only for local development)")
	}
	if c.Stripe.AllowUnsignedWebhooks && c.Server.Mode == "release" {
		return errors.New("stripe.allow_unsigned_webhooks cannot be enabled in release mode")
	}
	if c.Credential.EncryptionKey == "" {
		return errors.New("credential.encryption_key is required")
	}
	if c.Credential.FingerprintKey == "" {
		return errors.New("credential.fingerprint_key is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if len(c.Products) == 0 {
		return errors.New("products catalog is empty")
	}
	for name, p := range c.Products {
		if p.Amount < 0 || p.Currency == "" {
			return fmt.Errorf("product %q needs a non-negative amount and a currency", name)
		}
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CKF_.
// Nested keys use underscore: CKF_DATABASE_HOST, CKF_STRIPE_WEBHOOK_SECRET, etc.
// A .env file in the working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "checkout_fulfillment")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "5s")
	v.SetDefault("sqlite.path", "checkout.db")
	v.SetDefault("sqlite.busy_timeout", "5s")
	v.SetDefault("redis.host", "") // empty disables the order cache and rate limiting
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.order_ttl", "24h")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.allow_unsigned_webhooks", false)
	v.SetDefault("stripe.api_url", "")
	v.SetDefault("stripe.success_url", "http://localhost:3000/checkout/success")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/checkout/cancel")
	v.SetDefault("stripe.api_timeout", "10s")
	v.SetDefault("stripe.max_network_retries", 2)
	v.SetDefault("stripe.webhook_tolerance", "5m")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "checkout-fulfillment")
	v.SetDefault("credential.prefix", "sk-ai-")
	v.SetDefault("credential.encryption_key", "")
	v.SetDefault("credential.fingerprint_key", "")
	v.SetDefault("products", map[string]interface{}{
		"digital_credentialed": map[string]interface{}{
			"name":         "AI API key",
			"description":  "Personal API key for the AI service",
			"amount":       1000,
			"currency":     "usd",
			"credentialed": true,
		},
		"digital_plain": map[string]interface{}{
			"name":         "Digital download",
			"description":  "One-time digital good",
			"amount":       500,
			"currency":     "usd",
			"credentialed": false,
		},
	})
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CKF_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CKF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
