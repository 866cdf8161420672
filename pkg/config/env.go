package config

const EnvPrefix = "TEPCATALOG"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv       = "TEPCATALOG_APP_ENV"
	EnvPort         = "TEPCATALOG_APP_PORT"
	EnvLogLevel     = "TEPCATALOG_LOG_LEVEL"
	EnvLogWarnStack = "TEPCATALOG_LOG_WARN_STACK"

	EnvDBDSN      = "TEPCATALOG_DB_DSN"
	EnvDBDriver   = "TEPCATALOG_DB_DRIVER"
	EnvDBHost     = "TEPCATALOG_DB_HOST"
	EnvDBPort     = "TEPCATALOG_DB_PORT"
	EnvDBUser     = "TEPCATALOG_DB_USER"
	EnvDBPassword = "TEPCATALOG_DB_PASSWORD"
	EnvDBName     = "TEPCATALOG_DB_NAME"
	EnvDBSSLMode  = "TEPCATALOG_DB_SSLMODE"

	EnvRedisURL  = "TEPCATALOG_REDIS_URL"
	EnvRedisAddr = "TEPCATALOG_REDIS_ADDR"

	EnvImportMaxUploadMB = "TEPCATALOG_IMPORT_MAX_UPLOAD_MB"
	EnvIdempotencyTTL    = "TEPCATALOG_IDEMPOTENCY_TTL"
	EnvAutoMigrate       = "TEPCATALOG_AUTO_MIGRATE"

	EnvCronInterval = "TEPCATALOG_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
