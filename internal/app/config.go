package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/storage/postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, a .env file or YAML config
// files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to relative product image paths" flag:"image-base-url"`
	Order        OrderConfig
	Auth         AuthConfig
	Pool         PoolConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// OrderConfig tunes the order workflow.
type OrderConfig struct {
	DefaultShipping string        `default:"49.99" usage:"Shipping cost used when an order does not specify one"`
	TxTimeout       time.Duration `default:"5s" usage:"Upper bound for a single workflow transaction"`
	DefaultLimit    int           `default:"5" usage:"Default page size of order listings"`
	MaxLimit        int           `default:"100" usage:"Maximum page size of order listings"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret string        `usage:"HS256 secret used to verify bearer tokens" flag:"jwt-secret"`
	TokenTTL  time.Duration `default:"24h" usage:"Lifetime of tokens issued by seed-db"`
	Disabled  bool          `default:"false" usage:"Disable authentication (local development only)"`
}

// PoolConfig sizes the PostgreSQL connection pool.
type PoolConfig struct {
	MaxConns        int32         `default:"10"`
	MinConns        int32         `default:"0"`
	MaxConnLifetime time.Duration `default:"1h"`
}

// RedisConfig enables the product cache when Addr is set.
type RedisConfig struct {
	Addr      string        `default:"" usage:"Redis address; empty disables the product cache"`
	Namespace string        `default:"shop"`
	TTL       time.Duration `default:"1m" usage:"Product cache entry lifetime"`
}

// KafkaConfig enables the outbox relay when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers; empty disables the outbox relay"`
	Topic   string   `default:"shop.orders" usage:"Topic receiving order events"`
}

// OutboxConfig tunes the outbox relay.
type OutboxConfig struct {
	Interval    time.Duration `default:"500ms"`
	BatchSize   int           `default:"50"`
	MaxAttempts int           `default:"10" usage:"Deliveries attempted before an event is given up"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env into the process environment, then configuration
// from environment variables and YAML config files, and applies
// platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" && !c.Auth.Disabled {
		return errors.New("JWT secret is required: set SHOP_AUTH_JWT_SECRET or SHOP_AUTH_DISABLED=true")
	}
	if _, err := c.OrderConfig(); err != nil {
		return err
	}
	return nil
}

// OrderConfig converts the order section into the workflow configuration.
func (c *Config) OrderConfig() (order.Config, error) {
	oc := order.DefaultConfig()
	shipping, err := decimal.NewFromString(c.Order.DefaultShipping)
	if err != nil || shipping.IsNegative() {
		return oc, errors.Errorf("invalid default shipping %q", c.Order.DefaultShipping)
	}
	oc.DefaultShipping = shipping
	if c.Order.TxTimeout > 0 {
		oc.TxTimeout = c.Order.TxTimeout
	}
	if c.Order.DefaultLimit > 0 {
		oc.DefaultLimit = c.Order.DefaultLimit
	}
	if c.Order.MaxLimit > 0 {
		oc.MaxLimit = c.Order.MaxLimit
	}
	return oc, nil
}

// PoolConfig converts the pool section for postgres.NewPool.
func (c *Config) PoolConfig() postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxConns:        c.Pool.MaxConns,
		MinConns:        c.Pool.MinConns,
		MaxConnLifetime: c.Pool.MaxConnLifetime,
	}
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
