package config

// EnvPrefix is passed to envconfig. It stays empty because every struct
// tag spells the fully-qualified ORDERFLOW_* name.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv     = "ORDERFLOW_APP_ENV"
	EnvPort       = "ORDERFLOW_APP_PORT"
	EnvDBDSN      = "ORDERFLOW_DB_DSN"
	EnvDBHost     = "ORDERFLOW_DB_HOST"
	EnvDBUser     = "ORDERFLOW_DB_USER"
	EnvDBName     = "ORDERFLOW_DB_NAME"
	EnvRedisURL   = "ORDERFLOW_REDIS_URL"
	EnvJWTSecret  = "ORDERFLOW_JWT_SECRET"
	EnvJWTIssuer  = "ORDERFLOW_JWT_ISSUER"
	EnvJWTExpMins = "ORDERFLOW_JWT_EXPIRATION_MINUTES"
	EnvStripeKey  = "ORDERFLOW_STRIPE_API_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
