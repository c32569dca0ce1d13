package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MINIMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv  = "MINIMART_APP_ENV"
	EnvDBDSN   = "MINIMART_DB_DSN"
	EnvDBHost  = "MINIMART_DB_HOST"
	EnvDBUser  = "MINIMART_DB_USER"
	EnvDBName  = "MINIMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	PubSub       PubSubConfig
	Orders       OrdersConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
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
	Env          string `envconfig:"MINIMART_APP_ENV" required:"true"`
	Port         string `envconfig:"MINIMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MINIMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MINIMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MINIMART_DB_DSN"`
	Driver string `envconfig:"MINIMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MINIMART_DB_HOST"`
	LegacyPort     int    `envconfig:"MINIMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MINIMART_DB_USER"`
	LegacyPassword string `envconfig:"MINIMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"MINIMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"MINIMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MINIMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MINIMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MINIMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MINIMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MINIMART_REDIS_URL"`
	Address      string        `envconfig:"MINIMART_REDIS_ADDR"`
	Password     string        `envconfig:"MINIMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MINIMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MINIMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MINIMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MINIMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MINIMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MINIMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PubSubConfig struct {
	OrderEventsTopic string `envconfig:"MINIMART_PUBSUB_ORDER_EVENTS_TOPIC" default:"minimart-order-events"`
	Disabled         bool   `envconfig:"MINIMART_PUBSUB_DISABLED" default:"false"`
}

type OrdersConfig struct {
	// PendingTTL bounds how long an unconfirmed non-cash order may sit in
	// pending_confirmation before the cron worker cancels it.
	PendingTTL        time.Duration `envconfig:"MINIMART_ORDERS_PENDING_TTL" default:"72h"`
	CodeRetryAttempts int           `envconfig:"MINIMART_ORDERS_CODE_RETRY_ATTEMPTS" default:"3"`

	// PlaceLimit/PlaceWindow bound settlement attempts per customer.
	PlaceLimit  int64         `envconfig:"MINIMART_ORDERS_PLACE_LIMIT" default:"30"`
	PlaceWindow time.Duration `envconfig:"MINIMART_ORDERS_PLACE_WINDOW" default:"1m"`
}

type CronConfig struct {
	LockKey  string        `envconfig:"MINIMART_CRON_LOCK_KEY" default:"minimart:cron:lock"`
	LockTTL  time.Duration `envconfig:"MINIMART_CRON_LOCK_TTL" default:"1h"`
	Interval time.Duration `envconfig:"MINIMART_CRON_INTERVAL" default:"30m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MINIMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MINIMART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MINIMART_GCP_PROJECT_ID"`
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
