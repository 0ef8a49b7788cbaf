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
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FCM          FCMConfig
	AI           AIConfig
	Inactivity   InactivityConfig
	Dispatch     DispatchConfig
	Retention    RetentionConfig
	Stats        StatsConfig
	Ops          OpsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects intervals and limits the scheduler cannot run with.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{EnvInactivityThreshold, c.Inactivity.Threshold > 0},
		{EnvInactivityScanInterval, c.Inactivity.ScanInterval > 0},
		{EnvInactivityBatchSize, c.Inactivity.BatchSize > 0},
		{EnvDispatchInterval, c.Dispatch.Interval > 0},
		{EnvDispatchBatchSize, c.Dispatch.BatchSize > 0},
		{EnvDispatchMaxAttempts, c.Dispatch.MaxAttempts > 0},
		{EnvDispatchSendConcurrency, c.Dispatch.SendConcurrency > 0},
		{EnvDispatchClaimLease, c.Dispatch.ClaimLease > 0},
		{EnvAIMaxContentLength, c.AI.MaxContentLength > 3},
		{EnvRetentionDays, c.Retention.Days > 0},
		{EnvStatsInterval, c.Stats.Interval > 0},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}
	if c.Dispatch.BackoffMax < c.Dispatch.BackoffBase {
		return fmt.Errorf("%s must be >= %s", EnvDispatchBackoffMax, EnvDispatchBackoffBase)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"PUPPYTALK_APP_ENV" required:"true"`
	Port         string `envconfig:"PUPPYTALK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PUPPYTALK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PUPPYTALK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PUPPYTALK_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind       string `envconfig:"PUPPYTALK_SERVICE_KIND" default:"notification-worker"`
	InstanceID string `envconfig:"PUPPYTALK_INSTANCE_ID" default:"worker-0"`
}

type DBConfig struct {
	DSN    string `envconfig:"PUPPYTALK_DB_DSN"`
	Driver string `envconfig:"PUPPYTALK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PUPPYTALK_DB_HOST"`
	LegacyPort     int    `envconfig:"PUPPYTALK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PUPPYTALK_DB_USER"`
	LegacyPassword string `envconfig:"PUPPYTALK_DB_PASSWORD"`
	LegacyName     string `envconfig:"PUPPYTALK_DB_NAME"`
	LegacySSLMode  string `envconfig:"PUPPYTALK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PUPPYTALK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PUPPYTALK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PUPPYTALK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PUPPYTALK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"PUPPYTALK_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PUPPYTALK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PUPPYTALK_REDIS_ADDR"`
	Password     string        `envconfig:"PUPPYTALK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PUPPYTALK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PUPPYTALK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PUPPYTALK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PUPPYTALK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PUPPYTALK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PUPPYTALK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PUPPYTALK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PUPPYTALK_AUTO_MIGRATE" default:"false"`
	Consumers   bool `envconfig:"PUPPYTALK_ENABLE_CONSUMERS" default:"true"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PUPPYTALK_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PUPPYTALK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PUPPYTALK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PUPPYTALK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ActivityTopic            string `envconfig:"PUPPYTALK_PUBSUB_ACTIVITY_TOPIC" default:"pt-chat-activity"`
	ActivitySubscription     string `envconfig:"PUPPYTALK_PUBSUB_ACTIVITY_SUBSCRIPTION" default:"pt-chat-activity-worker"`
	NotificationTopic        string `envconfig:"PUPPYTALK_PUBSUB_NOTIFICATION_TOPIC" default:"pt-notification-events"`
	NotificationSubscription string `envconfig:"PUPPYTALK_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"pt-notification-events-worker"`
	MaxOutstandingMessages   int    `envconfig:"PUPPYTALK_PUBSUB_MAX_OUTSTANDING_MESSAGES" default:"50"`
	NumGoroutines            int    `envconfig:"PUPPYTALK_PUBSUB_NUM_GOROUTINES" default:"2"`
	// EmulatorHost points the client at a local Pub/Sub emulator (host:port).
	EmulatorHost string `envconfig:"PUPPYTALK_PUBSUB_EMULATOR_HOST"`
}

type FCMConfig struct {
	CredentialsFile string        `envconfig:"PUPPYTALK_FCM_CREDENTIALS_FILE"`
	RPS             float64       `envconfig:"PUPPYTALK_FCM_RPS" default:"50"`
	Burst           int           `envconfig:"PUPPYTALK_FCM_BURST" default:"10"`
	SendTimeout     time.Duration `envconfig:"PUPPYTALK_FCM_SEND_TIMEOUT" default:"10s"`
}

// Enabled reports whether push delivery has credentials to authenticate with.
func (f FCMConfig) Enabled() bool {
	return strings.TrimSpace(f.CredentialsFile) != ""
}

type AIConfig struct {
	APIKey           string        `envconfig:"PUPPYTALK_OPENAI_API_KEY"`
	BaseURL          string        `envconfig:"PUPPYTALK_OPENAI_BASE_URL" default:"https://api.openai.com"`
	Model            string        `envconfig:"PUPPYTALK_OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout          time.Duration `envconfig:"PUPPYTALK_AI_TIMEOUT" default:"30s"`
	MaxTokens        int           `envconfig:"PUPPYTALK_AI_MAX_TOKENS" default:"150"`
	Temperature      float64       `envconfig:"PUPPYTALK_AI_TEMPERATURE" default:"0.8"`
	RPS              float64       `envconfig:"PUPPYTALK_AI_RPS" default:"5"`
	MaxContentLength int           `envconfig:"PUPPYTALK_AI_MAX_CONTENT_LENGTH" default:"100"`
	HistorySize      int           `envconfig:"PUPPYTALK_AI_HISTORY_SIZE" default:"5"`
}

// Enabled reports whether an API key was supplied.
func (a AIConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

type InactivityConfig struct {
	Threshold    time.Duration `envconfig:"PUPPYTALK_INACTIVITY_THRESHOLD" default:"24h"`
	ScanInterval time.Duration `envconfig:"PUPPYTALK_INACTIVITY_SCAN_INTERVAL" default:"30m"`
	BatchSize    int           `envconfig:"PUPPYTALK_INACTIVITY_BATCH_SIZE" default:"200"`
	RunBudget    time.Duration `envconfig:"PUPPYTALK_INACTIVITY_RUN_BUDGET" default:"10m"`
	LockTTL      time.Duration `envconfig:"PUPPYTALK_INACTIVITY_LOCK_TTL" default:"25m"`
}

type DispatchConfig struct {
	Interval        time.Duration `envconfig:"PUPPYTALK_DISPATCH_INTERVAL" default:"5m"`
	BatchSize       int           `envconfig:"PUPPYTALK_DISPATCH_BATCH_SIZE" default:"100"`
	MaxAttempts     int           `envconfig:"PUPPYTALK_DISPATCH_MAX_ATTEMPTS" default:"3"`
	Debounce        time.Duration `envconfig:"PUPPYTALK_DISPATCH_DEBOUNCE" default:"30s"`
	RunBudget       time.Duration `envconfig:"PUPPYTALK_DISPATCH_RUN_BUDGET" default:"2m"`
	BackoffBase     time.Duration `envconfig:"PUPPYTALK_DISPATCH_BACKOFF_BASE" default:"1m"`
	BackoffMax      time.Duration `envconfig:"PUPPYTALK_DISPATCH_BACKOFF_MAX" default:"30m"`
	ClaimLease      time.Duration `envconfig:"PUPPYTALK_DISPATCH_CLAIM_LEASE" default:"5m"`
	SendConcurrency int           `envconfig:"PUPPYTALK_DISPATCH_SEND_CONCURRENCY" default:"4"`
	LockTTL         time.Duration `envconfig:"PUPPYTALK_DISPATCH_LOCK_TTL" default:"4m"`
}

type RetentionConfig struct {
	Days     int           `envconfig:"PUPPYTALK_RETENTION_DAYS" default:"30"`
	Interval time.Duration `envconfig:"PUPPYTALK_RETENTION_INTERVAL" default:"24h"`
}

// Window returns the retention period as a duration.
func (r RetentionConfig) Window() time.Duration {
	return time.Duration(r.Days) * 24 * time.Hour
}

type StatsConfig struct {
	Interval time.Duration `envconfig:"PUPPYTALK_STATS_INTERVAL" default:"5m"`
}

// OpsConfig throttles the manual run triggers on the ops router.
type OpsConfig struct {
	TriggerLimit  int64         `envconfig:"PUPPYTALK_OPS_TRIGGER_LIMIT" default:"6"`
	TriggerWindow time.Duration `envconfig:"PUPPYTALK_OPS_TRIGGER_WINDOW" default:"1m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite && db.DSN != "" {
		db.Driver = DriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = defaultSQLiteDSN
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
