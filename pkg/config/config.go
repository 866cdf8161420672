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
	DB           DBConfig
	Redis        RedisConfig
	Import       ImportConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"TEPCATALOG_APP_ENV" required:"true"`
	Port         string `envconfig:"TEPCATALOG_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TEPCATALOG_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TEPCATALOG_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is comma separated; empty allows the local dev origins.
	CORSOrigins []string `envconfig:"TEPCATALOG_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TEPCATALOG_DB_DSN"`
	Driver string `envconfig:"TEPCATALOG_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TEPCATALOG_DB_HOST"`
	LegacyPort     int    `envconfig:"TEPCATALOG_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TEPCATALOG_DB_USER"`
	LegacyPassword string `envconfig:"TEPCATALOG_DB_PASSWORD"`
	LegacyName     string `envconfig:"TEPCATALOG_DB_NAME"`
	LegacySSLMode  string `envconfig:"TEPCATALOG_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TEPCATALOG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TEPCATALOG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TEPCATALOG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TEPCATALOG_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

// RedisConfig is optional. When neither URL nor Address is set the service
// runs without idempotency replay.
type RedisConfig struct {
	URL          string        `envconfig:"TEPCATALOG_REDIS_URL"`
	Address      string        `envconfig:"TEPCATALOG_REDIS_ADDR"`
	Password     string        `envconfig:"TEPCATALOG_REDIS_PASSWORD"`
	DB           int           `envconfig:"TEPCATALOG_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TEPCATALOG_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TEPCATALOG_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TEPCATALOG_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TEPCATALOG_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TEPCATALOG_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type ImportConfig struct {
	MaxUploadMB    int           `envconfig:"TEPCATALOG_IMPORT_MAX_UPLOAD_MB" default:"20"`
	IdempotencyTTL time.Duration `envconfig:"TEPCATALOG_IDEMPOTENCY_TTL" default:"24h"`
}

// MaxUploadBytes converts the configured upload cap into bytes.
func (i ImportConfig) MaxUploadBytes() int64 {
	if i.MaxUploadMB <= 0 {
		return 0
	}
	return int64(i.MaxUploadMB) << 20
}

// CronConfig drives the maintenance worker. LockTTL bounds how long a crashed
// worker can hold the cycle lock.
type CronConfig struct {
	Interval  time.Duration `envconfig:"TEPCATALOG_CRON_INTERVAL" default:"24h"`
	LockTTL   time.Duration `envconfig:"TEPCATALOG_CRON_LOCK_TTL" default:"25h"`
	BatchSize int           `envconfig:"TEPCATALOG_CRON_BATCH_SIZE" default:"200"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TEPCATALOG_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
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
