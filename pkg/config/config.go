package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Raffle       RaffleConfig
	Admin        AdminConfig
	Reconcile    ReconcileConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.Raffle.PricePerEntryCents <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvPricePerEntry)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RAFFLE_APP_ENV" required:"true"`
	Port         string `envconfig:"RAFFLE_APP_PORT" default:"3000"`
	LogLevel     string `envconfig:"RAFFLE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"RAFFLE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"RAFFLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"RAFFLE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RAFFLE_DB_DSN"`
	Driver string `envconfig:"RAFFLE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"RAFFLE_DB_HOST"`
	Port     int    `envconfig:"RAFFLE_DB_PORT" default:"5432"`
	User     string `envconfig:"RAFFLE_DB_USER"`
	Password string `envconfig:"RAFFLE_DB_PASSWORD"`
	Name     string `envconfig:"RAFFLE_DB_NAME"`
	SSLMode  string `envconfig:"RAFFLE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"RAFFLE_SQLITE_PATH" default:"raffle.db"`

	MaxOpenConns    int           `envconfig:"RAFFLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RAFFLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RAFFLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RAFFLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"RAFFLE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RAFFLE_REDIS_URL"`
	Address      string        `envconfig:"RAFFLE_REDIS_ADDR"`
	Password     string        `envconfig:"RAFFLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RAFFLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RAFFLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RAFFLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RAFFLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RAFFLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RAFFLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type StripeConfig struct {
	APIKey    string        `envconfig:"RAFFLE_STRIPE_SECRET_KEY"`
	Secret    string        `envconfig:"RAFFLE_STRIPE_WEBHOOK_SECRET"`
	Env       string        `envconfig:"RAFFLE_STRIPE_ENV" default:"test"`
	Timeout   time.Duration `envconfig:"RAFFLE_STRIPE_TIMEOUT" default:"30s"`
	APIBase   string        `envconfig:"RAFFLE_STRIPE_API_BASE"`
	DedupeTTL time.Duration `envconfig:"RAFFLE_STRIPE_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether a Stripe secret key has been supplied.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type RaffleConfig struct {
	PricePerEntryCents int64  `envconfig:"RAFFLE_PRICE_PER_ENTRY" default:"700"`
	Currency           string `envconfig:"RAFFLE_CURRENCY" default:"usd"`
	ProductName        string `envconfig:"RAFFLE_PRODUCT_NAME" default:"Talent Credits"`
	SiteURL            string `envconfig:"RAFFLE_SITE_URL" default:"http://localhost:5173"`
	MaxEntriesPerOrder int64  `envconfig:"RAFFLE_MAX_ENTRIES_PER_ORDER" default:"1000"`
}

// SuccessURL is the Checkout redirect after payment; Stripe fills in the session id.
func (r RaffleConfig) SuccessURL() string {
	return strings.TrimRight(r.SiteURL, "/") + "/payment-success/index.html?session_id={CHECKOUT_SESSION_ID}&success=1"
}

func (r RaffleConfig) CancelURL() string {
	return strings.TrimRight(r.SiteURL, "/") + "/modules/raffle/?canceled=1"
}

type AdminConfig struct {
	Token           string        `envconfig:"RAFFLE_ADMIN_TOKEN"`
	RateLimitWindow time.Duration `envconfig:"RAFFLE_ADMIN_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"RAFFLE_ADMIN_RATE_LIMIT_PER_IP" default:"30"`
}

type ReconcileConfig struct {
	Interval      time.Duration `envconfig:"RAFFLE_RECONCILE_INTERVAL" default:"1h"`
	Timeout       time.Duration `envconfig:"RAFFLE_RECONCILE_TIMEOUT" default:"10m"`
	LookbackHours int           `envconfig:"RAFFLE_RECONCILE_LOOKBACK_HOURS" default:"72"`
	MaxPages      int           `envconfig:"RAFFLE_RECONCILE_MAX_PAGES" default:"5"`
	PageSize      int64         `envconfig:"RAFFLE_RECONCILE_PAGE_SIZE" default:"50"`
}

type CORSConfig struct {
	Origins []string `envconfig:"RAFFLE_CORS_ORIGINS" default:"http://localhost:5173"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RAFFLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RAFFLE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
