package config

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "PRIVILEGIA_APP_ENV"
	EnvPort     = "PRIVILEGIA_APP_PORT"
	EnvLogLevel = "PRIVILEGIA_LOG_LEVEL"

	EnvDBDSN  = "PRIVILEGIA_DB_DSN"
	EnvDBHost = "PRIVILEGIA_DB_HOST"
	EnvDBUser = "PRIVILEGIA_DB_USER"
	EnvDBName = "PRIVILEGIA_DB_NAME"

	EnvRedisURL = "PRIVILEGIA_REDIS_URL"

	EnvJWTSecret  = "PRIVILEGIA_JWT_SECRET"
	EnvJWTIssuer  = "PRIVILEGIA_JWT_ISSUER"
	EnvJWTExpMins = "PRIVILEGIA_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey   = "PRIVILEGIA_STRIPE_API_KEY"
	EnvStripeSecret   = "PRIVILEGIA_STRIPE_SECRET"
	EnvStripePriceMap = "PRIVILEGIA_STRIPE_PRICE_MAP"

	EnvGeminiAPIKey   = "PRIVILEGIA_GEMINI_API_KEY"
	EnvCronInterval   = "PRIVILEGIA_CRON_INTERVAL"
	EnvActivationTTL  = "PRIVILEGIA_ACTIVATION_WINDOW"
	EnvFeedbackPoints = "PRIVILEGIA_FEEDBACK_BONUS_POINTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
