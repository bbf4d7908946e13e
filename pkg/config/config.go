package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	HTTP          HTTPConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Matching      MatchingConfig
	Jobs          JobsConfig
	Notifications NotificationsConfig
	SMTP          SMTPConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Matching.validate(); err != nil {
		return nil, err
	}
	// Container platforms assign the listen port through PORT.
	if port := strings.TrimSpace(os.Getenv(EnvPlatformPort)); port != "" {
		cfg.App.Port = port
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EMLAK_APP_ENV" required:"true"`
	Port         string `envconfig:"EMLAK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"EMLAK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"EMLAK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"EMLAK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind       string `envconfig:"EMLAK_SERVICE_KIND" default:"api"`
	InstanceID string `envconfig:"EMLAK_INSTANCE_ID"`
}

type DBConfig struct {
	DSN string `envconfig:"EMLAK_DB_DSN"`

	Host     string `envconfig:"EMLAK_DB_HOST"`
	Port     int    `envconfig:"EMLAK_DB_PORT" default:"5432"`
	User     string `envconfig:"EMLAK_DB_USER"`
	Password string `envconfig:"EMLAK_DB_PASSWORD"`
	Name     string `envconfig:"EMLAK_DB_NAME"`
	SSLMode  string `envconfig:"EMLAK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EMLAK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EMLAK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EMLAK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EMLAK_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"EMLAK_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
	TxMaxAttempts      int           `envconfig:"EMLAK_DB_TX_MAX_ATTEMPTS" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EMLAK_REDIS_URL" required:"true"`
	Password     string        `envconfig:"EMLAK_REDIS_PASSWORD"`
	DB           int           `envconfig:"EMLAK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EMLAK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EMLAK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EMLAK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EMLAK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EMLAK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies personnel tokens issued by the back-office login screens.
type JWTConfig struct {
	Secret string `envconfig:"EMLAK_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"EMLAK_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"EMLAK_JWT_LEEWAY" default:"30s"`
}

// HTTPConfig tunes the internal API surface.
type HTTPConfig struct {
	CORSOrigins       []string      `envconfig:"EMLAK_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
	TriggerLimit      int64         `envconfig:"EMLAK_HTTP_TRIGGER_LIMIT" default:"30"`
	TriggerWindow     time.Duration `envconfig:"EMLAK_HTTP_TRIGGER_WINDOW" default:"1m"`
	MatchAllLimit     int64         `envconfig:"EMLAK_HTTP_MATCH_ALL_LIMIT" default:"2"`
	MatchAllWindow    time.Duration `envconfig:"EMLAK_HTTP_MATCH_ALL_WINDOW" default:"1h"`
	ShutdownTimeout   time.Duration `envconfig:"EMLAK_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	ReadHeaderTimeout time.Duration `envconfig:"EMLAK_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"EMLAK_AUTO_MIGRATE" default:"false"`
	EmailChannel  bool `envconfig:"EMLAK_FEATURE_EMAIL_CHANNEL" default:"true"`
	MatchAnalytic bool `envconfig:"EMLAK_FEATURE_MATCH_ANALYTICS" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"EMLAK_EVENTING_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"EMLAK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"EMLAK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"EMLAK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TriggerTopic        string `envconfig:"EMLAK_PUBSUB_TRIGGER_TOPIC" default:"emlak-match-triggers"`
	TriggerSubscription string `envconfig:"EMLAK_PUBSUB_TRIGGER_SUBSCRIPTION" default:"emlak-match-triggers-worker"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"EMLAK_BIGQUERY_DATASET" default:"emlak"`
	MatchRunsTable string `envconfig:"EMLAK_BIGQUERY_MATCH_RUNS_TABLE" default:"match_runs"`
}

// MatchingConfig holds the score thresholds used by the matching engine.
type MatchingConfig struct {
	MinScore  float64       `envconfig:"EMLAK_MATCHING_MIN_SCORE" default:"0.3"`
	HighScore float64       `envconfig:"EMLAK_MATCHING_HIGH_SCORE" default:"0.8"`
	LockTTL   time.Duration `envconfig:"EMLAK_MATCHING_LOCK_TTL" default:"6m"`
}

func (m MatchingConfig) validate() error {
	if m.MinScore < 0 || m.MinScore > 1 {
		return fmt.Errorf("%s must be within [0,1]", EnvMatchingMinScore)
	}
	if m.HighScore < 0 || m.HighScore > 1 {
		return fmt.Errorf("%s must be within [0,1]", EnvMatchingHighScore)
	}
	if m.HighScore < m.MinScore {
		return fmt.Errorf("%s must not be lower than %s", EnvMatchingHighScore, EnvMatchingMinScore)
	}
	return nil
}

type JobsConfig struct {
	Workers        int           `envconfig:"EMLAK_JOBS_WORKERS" default:"4"`
	QueueSize      int           `envconfig:"EMLAK_JOBS_QUEUE_SIZE" default:"256"`
	MaxAttempts    int           `envconfig:"EMLAK_JOBS_MAX_ATTEMPTS" default:"3"`
	AttemptTimeout time.Duration `envconfig:"EMLAK_JOBS_ATTEMPT_TIMEOUT" default:"300s"`
	RetryBackoff   time.Duration `envconfig:"EMLAK_JOBS_RETRY_BACKOFF" default:"5s"`
}

type NotificationsConfig struct {
	Workers            int           `envconfig:"EMLAK_NOTIFICATIONS_WORKERS" default:"2"`
	QueueSize          int           `envconfig:"EMLAK_NOTIFICATIONS_QUEUE_SIZE" default:"512"`
	PreferenceCacheTTL time.Duration `envconfig:"EMLAK_NOTIFICATIONS_PREFERENCE_CACHE_TTL" default:"5m"`
	PanelBaseURL       string        `envconfig:"EMLAK_NOTIFICATIONS_PANEL_BASE_URL" default:"https://panel.emlak.local"`
}

type SMTPConfig struct {
	Host          string  `envconfig:"EMLAK_SMTP_HOST"`
	Port          int     `envconfig:"EMLAK_SMTP_PORT" default:"587"`
	Username      string  `envconfig:"EMLAK_SMTP_USERNAME"`
	Password      string  `envconfig:"EMLAK_SMTP_PASSWORD"`
	From          string  `envconfig:"EMLAK_SMTP_FROM" default:"bildirim@emlak.local"`
	RatePerSecond float64 `envconfig:"EMLAK_SMTP_RATE_PER_SECOND" default:"5"`
	Burst         int     `envconfig:"EMLAK_SMTP_BURST" default:"10"`
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type CronConfig struct {
	MatchAllInterval          time.Duration `envconfig:"EMLAK_CRON_MATCH_ALL_INTERVAL" default:"6h"`
	NotificationRetentionDays int           `envconfig:"EMLAK_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
	NotificationCleanupBatch  int           `envconfig:"EMLAK_CRON_NOTIFICATION_CLEANUP_BATCH" default:"1000"`
}

func (db *DBConfig) ensureDSN() error {
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
