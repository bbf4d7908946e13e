package config

// EnvPrefix is passed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = "EMLAK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv               = "EMLAK_APP_ENV"
	EnvPort                 = "EMLAK_APP_PORT"
	EnvPlatformPort         = "PORT"
	EnvDBDSN                = "EMLAK_DB_DSN"
	EnvDBHost               = "EMLAK_DB_HOST"
	EnvDBUser               = "EMLAK_DB_USER"
	EnvDBName               = "EMLAK_DB_NAME"
	EnvRedisURL             = "EMLAK_REDIS_URL"
	EnvJWTSecret            = "EMLAK_JWT_SECRET"
	EnvJWTIssuer            = "EMLAK_JWT_ISSUER"
	EnvGCPProjectID         = "EMLAK_GCP_PROJECT_ID"
	EnvPubSubTriggerSub     = "EMLAK_PUBSUB_TRIGGER_SUBSCRIPTION"
	EnvMatchingMinScore     = "EMLAK_MATCHING_MIN_SCORE"
	EnvMatchingHighScore    = "EMLAK_MATCHING_HIGH_SCORE"
	EnvCronMatchAllInterval = "EMLAK_CRON_MATCH_ALL_INTERVAL"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
