package config

const EnvPrefix = "RAFFLE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv            = "RAFFLE_APP_ENV"
	EnvPort              = "RAFFLE_APP_PORT"
	EnvDBDSN             = "RAFFLE_DB_DSN"
	EnvDBHost            = "RAFFLE_DB_HOST"
	EnvDBUser            = "RAFFLE_DB_USER"
	EnvDBName            = "RAFFLE_DB_NAME"
	EnvRedisURL          = "RAFFLE_REDIS_URL"
	EnvStripeKey         = "RAFFLE_STRIPE_SECRET_KEY"
	EnvStripeSecret      = "RAFFLE_STRIPE_WEBHOOK_SECRET"
	EnvPricePerEntry     = "RAFFLE_PRICE_PER_ENTRY"
	EnvAdminToken        = "RAFFLE_ADMIN_TOKEN"
	EnvUseSQLite         = "RAFFLE_USE_SQLITE"
	EnvCORSOrigins       = "RAFFLE_CORS_ORIGINS"
	EnvReconcileLookback = "RAFFLE_RECONCILE_LOOKBACK_HOURS"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

