package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	GeoIP        GeoIPConfig
	Maps         MapsConfig
	AI           AIConfig
	Cron         CronConfig
	Privileges   PrivilegesConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	prices, err := ParsePriceMap(cfg.Stripe.PriceMapRaw)
	if err != nil {
		return nil, err
	}
	cfg.Stripe.PriceMap = prices
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PRIVILEGIA_APP_ENV" required:"true"`
	Port         string `envconfig:"PRIVILEGIA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRIVILEGIA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRIVILEGIA_LOG_WARN_STACK" default:"false"`

	// CORSOrigins extends the built-in member and partner app origins.
	CORSOrigins []string `envconfig:"PRIVILEGIA_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PRIVILEGIA_DB_DSN"`
	Driver string `envconfig:"PRIVILEGIA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRIVILEGIA_DB_HOST"`
	LegacyPort     int    `envconfig:"PRIVILEGIA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRIVILEGIA_DB_USER"`
	LegacyPassword string `envconfig:"PRIVILEGIA_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRIVILEGIA_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRIVILEGIA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRIVILEGIA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRIVILEGIA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRIVILEGIA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRIVILEGIA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRIVILEGIA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRIVILEGIA_REDIS_ADDR"`
	Password     string        `envconfig:"PRIVILEGIA_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRIVILEGIA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRIVILEGIA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRIVILEGIA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRIVILEGIA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRIVILEGIA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRIVILEGIA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PRIVILEGIA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PRIVILEGIA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PRIVILEGIA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig bounds the write endpoints that create bookings and
// activations.
type RateLimitConfig struct {
	Window      time.Duration `envconfig:"PRIVILEGIA_RATE_LIMIT_WINDOW" default:"1m"`
	MemberLimit int           `envconfig:"PRIVILEGIA_RATE_LIMIT_MEMBER_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PRIVILEGIA_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey          string        `envconfig:"PRIVILEGIA_STRIPE_API_KEY"`
	Secret          string        `envconfig:"PRIVILEGIA_STRIPE_SECRET"`
	Env             string        `envconfig:"PRIVILEGIA_STRIPE_ENV" default:"test"`
	ProductName     string        `envconfig:"PRIVILEGIA_STRIPE_PRODUCT_NAME" default:"Privilegia annual access"`
	SuccessURL      string        `envconfig:"PRIVILEGIA_STRIPE_SUCCESS_URL" default:"https://app.privilegia.ch/subscription/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL       string        `envconfig:"PRIVILEGIA_STRIPE_CANCEL_URL" default:"https://app.privilegia.ch/subscription/cancel"`
	PriceMapRaw     string        `envconfig:"PRIVILEGIA_STRIPE_PRICE_MAP"`
	IdempotencyTTL  time.Duration `envconfig:"PRIVILEGIA_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	HTTPTimeout     time.Duration `envconfig:"PRIVILEGIA_STRIPE_HTTP_TIMEOUT" default:"10s"`
	PriceMap        PriceMap      `ignored:"true"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GeoIPConfig struct {
	BaseURL  string        `envconfig:"PRIVILEGIA_GEOIP_BASE_URL" default:"https://ipapi.co"`
	Timeout  time.Duration `envconfig:"PRIVILEGIA_GEOIP_TIMEOUT" default:"2s"`
	CacheTTL time.Duration `envconfig:"PRIVILEGIA_GEOIP_CACHE_TTL" default:"24h"`
}

type MapsConfig struct {
	APIKey      string        `envconfig:"PRIVILEGIA_GOOGLE_MAPS_API_KEY"`
	Timeout     time.Duration `envconfig:"PRIVILEGIA_GOOGLE_MAPS_TIMEOUT" default:"3s"`
	RegionCodes []string      `envconfig:"PRIVILEGIA_GOOGLE_MAPS_REGIONS" default:"ch,fr,de,it,at"`
}

type AIConfig struct {
	GeminiAPIKey string        `envconfig:"PRIVILEGIA_GEMINI_API_KEY"`
	Model        string        `envconfig:"PRIVILEGIA_GEMINI_MODEL" default:"gemini-2.0-flash"`
	Timeout      time.Duration `envconfig:"PRIVILEGIA_AI_TIMEOUT" default:"5s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PRIVILEGIA_CRON_INTERVAL" default:"30m"`
	LockTTL  time.Duration `envconfig:"PRIVILEGIA_CRON_LOCK_TTL" default:"10m"`
}

type PrivilegesConfig struct {
	ActivationWindow   time.Duration `envconfig:"PRIVILEGIA_ACTIVATION_WINDOW" default:"2m"`
	FeedbackBonus      int           `envconfig:"PRIVILEGIA_FEEDBACK_BONUS_POINTS" default:"10"`
	NearbyRadiusMeters float64       `envconfig:"PRIVILEGIA_NEARBY_RADIUS_METERS" default:"10000"`
}

// PriceKey identifies a pre-provisioned billing price.
type PriceKey struct {
	NbAccess int
	Currency string
}

// PriceMap maps an (access count, currency) pair to a provider price id.
type PriceMap map[PriceKey]string

func (m PriceMap) Lookup(nbAccess int, currency string) (string, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m[PriceKey{NbAccess: nbAccess, Currency: strings.ToUpper(currency)}]
	return id, ok && id != ""
}

// ParsePriceMap parses entries of the form "5:CHF=price_abc,5:EUR=price_def".
func ParsePriceMap(raw string) (PriceMap, error) {
	out := PriceMap{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, priceID, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(priceID) == "" {
			return nil, fmt.Errorf("%s: invalid entry %q", EnvStripePriceMap, entry)
		}
		countRaw, currency, ok := strings.Cut(key, ":")
		if !ok {
			return nil, fmt.Errorf("%s: invalid key %q", EnvStripePriceMap, key)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countRaw))
		if err != nil || count < 1 {
			return nil, fmt.Errorf("%s: invalid access count %q", EnvStripePriceMap, countRaw)
		}
		currency = strings.ToUpper(strings.TrimSpace(currency))
		if currency == "" {
			return nil, fmt.Errorf("%s: missing currency in %q", EnvStripePriceMap, key)
		}
		out[PriceKey{NbAccess: count, Currency: currency}] = strings.TrimSpace(priceID)
	}
	return out, nil
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
