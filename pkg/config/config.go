package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Orders   OrdersConfig
	Cron     CronConfig
	Realtime RealtimeConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERFLOW_DB_DSN"`
	Driver string `envconfig:"ORDERFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERFLOW_DB_USER"`
	LegacyPassword string `envconfig:"ORDERFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERFLOW_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"ORDERFLOW_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"ORDERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ORDERFLOW_STRIPE_API_KEY"`
	// Secret is the webhook signing secret (whsec_...).
	Secret string `envconfig:"ORDERFLOW_STRIPE_SECRET"`
	Env    string `envconfig:"ORDERFLOW_STRIPE_ENV" default:"test"`

	WebhookIdempotencyTTL time.Duration `envconfig:"ORDERFLOW_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// CheckoutConfig holds the pricing knobs applied when an order is created.
// Defaults mirror the storefront policy: 8% tax, free shipping over $100.
type CheckoutConfig struct {
	TaxRate               string `envconfig:"ORDERFLOW_CHECKOUT_TAX_RATE" default:"0.08"`
	ShippingFlatFee       string `envconfig:"ORDERFLOW_CHECKOUT_SHIPPING_FLAT_FEE" default:"10"`
	FreeShippingThreshold string `envconfig:"ORDERFLOW_CHECKOUT_FREE_SHIPPING_THRESHOLD" default:"100"`
}

type OrdersConfig struct {
	// ExpiryEnabled opts in to auto-cancelling stale payment-pending orders.
	// Off by default: holding reservations indefinitely is the documented
	// storefront behavior and releasing them is a policy choice.
	ExpiryEnabled bool          `envconfig:"ORDERFLOW_ORDERS_EXPIRY_ENABLED" default:"false"`
	ExpiryTTL     time.Duration `envconfig:"ORDERFLOW_ORDERS_EXPIRY_TTL" default:"240h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ORDERFLOW_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"ORDERFLOW_CRON_LOCK_TTL" default:"55m"`
}

type RealtimeConfig struct {
	// SendBuffer is the per-connection outbound queue; full queues drop.
	SendBuffer     int      `envconfig:"ORDERFLOW_REALTIME_SEND_BUFFER" default:"16"`
	AllowedOrigins []string `envconfig:"ORDERFLOW_REALTIME_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
