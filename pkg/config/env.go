package config

const (
	EnvPrefix = "PUPPYTALK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:puppytalk.db?cache=shared"
)

const (
	EnvAppEnv   = "PUPPYTALK_APP_ENV"
	EnvPort     = "PUPPYTALK_APP_PORT"
	EnvLogLevel = "PUPPYTALK_LOG_LEVEL"

	EnvDBDSN  = "PUPPYTALK_DB_DSN"
	EnvDBHost = "PUPPYTALK_DB_HOST"
	EnvDBUser = "PUPPYTALK_DB_USER"
	EnvDBName = "PUPPYTALK_DB_NAME"

	EnvRedisURL  = "PUPPYTALK_REDIS_URL"
	EnvUseSQLite = "PUPPYTALK_USE_SQLITE"

	EnvGCPProjectID = "PUPPYTALK_GCP_PROJECT_ID"
	EnvFCMCreds     = "PUPPYTALK_FCM_CREDENTIALS_FILE"
	EnvOpenAIAPIKey = "PUPPYTALK_OPENAI_API_KEY"

	EnvAIMaxContentLength = "PUPPYTALK_AI_MAX_CONTENT_LENGTH"

	EnvInactivityThreshold    = "PUPPYTALK_INACTIVITY_THRESHOLD"
	EnvInactivityScanInterval = "PUPPYTALK_INACTIVITY_SCAN_INTERVAL"
	EnvInactivityBatchSize    = "PUPPYTALK_INACTIVITY_BATCH_SIZE"

	EnvDispatchInterval        = "PUPPYTALK_DISPATCH_INTERVAL"
	EnvDispatchBatchSize       = "PUPPYTALK_DISPATCH_BATCH_SIZE"
	EnvDispatchMaxAttempts     = "PUPPYTALK_DISPATCH_MAX_ATTEMPTS"
	EnvDispatchSendConcurrency = "PUPPYTALK_DISPATCH_SEND_CONCURRENCY"
	EnvDispatchClaimLease      = "PUPPYTALK_DISPATCH_CLAIM_LEASE"
	EnvDispatchBackoffBase     = "PUPPYTALK_DISPATCH_BACKOFF_BASE"
	EnvDispatchBackoffMax      = "PUPPYTALK_DISPATCH_BACKOFF_MAX"

	EnvRetentionDays = "PUPPYTALK_RETENTION_DAYS"
	EnvStatsInterval = "PUPPYTALK_STATS_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
