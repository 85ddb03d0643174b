package currency

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/privilegia/privilegia-backend/pkg/enums"
	"github.com/privilegia/privilegia-backend/pkg/geoip"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/redis"
)

// Source tells the caller how the currency was chosen.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceGeoIP    Source = "geoip"
	SourceDefault  Source = "default"
)

const (
	defaultCountry = "CH"
	cacheScope     = "geoip"
	defaultTimeout = 2 * time.Second
	defaultTTL     = 24 * time.Hour
)

// eurozone lists the ISO codes priced in EUR. Everything else outside
// Switzerland also falls back to EUR.
var eurozone = map[string]struct{}{
	"AT": {}, "BE": {}, "CY": {}, "DE": {}, "EE": {}, "ES": {}, "FI": {},
	"FR": {}, "GR": {}, "HR": {}, "IE": {}, "IT": {}, "LT": {}, "LU": {},
	"LV": {}, "MT": {}, "NL": {}, "PT": {}, "SI": {}, "SK": {},
}

// Resolution is the currency chosen for a caller plus display metadata.
type Resolution struct {
	Currency    enums.Currency
	CountryCode string
	Symbol      string
	Flag        string
	Detected    bool
	Source      Source
}

// Locator resolves an IP to a location.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*geoip.Location, error)
}

type ResolverParams struct {
	Locator  Locator
	Cache    redis.Cache
	Logger   *logger.Logger
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Resolver picks CHF or EUR for a request. Lookups are best effort and fail
// closed to CHF/Switzerland.
type Resolver struct {
	locator  Locator
	cache    redis.Cache
	logg     *logger.Logger
	timeout  time.Duration
	cacheTTL time.Duration
}

func NewResolver(params ResolverParams) *Resolver {
	r := &Resolver{
		locator:  params.Locator,
		cache:    params.Cache,
		logg:     params.Logger,
		timeout:  params.Timeout,
		cacheTTL: params.CacheTTL,
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = defaultTTL
	}
	return r
}

// Resolve honours an explicit supported code, otherwise geolocates ip.
func (r *Resolver) Resolve(ctx context.Context, explicitCode, ip string) Resolution {
	if code := strings.TrimSpace(explicitCode); code != "" {
		if cur, err := enums.ParseCurrency(code); err == nil {
			country := defaultCountry
			if cur == enums.CurrencyEUR {
				country = "EU"
			}
			return newResolution(cur, country, false, SourceExplicit)
		}
	}

	if !isPublicIP(ip) || r.locator == nil {
		return fallback()
	}

	country, ok := r.lookupCountry(ctx, ip)
	if !ok {
		return fallback()
	}
	return newResolution(CurrencyForCountry(country), country, true, SourceGeoIP)
}

func (r *Resolver) lookupCountry(ctx context.Context, ip string) (string, bool) {
	key := ""
	if r.cache != nil {
		key = r.cache.CacheKey(cacheScope, ip)
		if cached, err := r.cache.Get(ctx, key); err == nil && cached != "" {
			return cached, true
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	loc, err := r.locator.Lookup(lookupCtx, ip)
	if err != nil || loc == nil || loc.CountryCode == "" {
		if r.logg != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"ip": ip, "error": errString(err)}), "currency.geoip_lookup_failed")
		}
		return "", false
	}

	country := strings.ToUpper(loc.CountryCode)
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, country, r.cacheTTL); err != nil && r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "currency.geoip_cache_write_failed")
		}
	}
	return country, true
}

// CurrencyForCountry maps an ISO country code to a billing currency.
func CurrencyForCountry(country string) enums.Currency {
	country = strings.ToUpper(strings.TrimSpace(country))
	switch {
	case country == "CH":
		return enums.CurrencyCHF
	case IsEurozone(country):
		return enums.CurrencyEUR
	default:
		return enums.CurrencyEUR
	}
}

// IsEurozone reports membership in the enumerated euro area.
func IsEurozone(country string) bool {
	_, ok := eurozone[strings.ToUpper(strings.TrimSpace(country))]
	return ok
}

func fallback() Resolution {
	return newResolution(enums.CurrencyCHF, defaultCountry, false, SourceDefault)
}

func newResolution(cur enums.Currency, country string, detected bool, source Source) Resolution {
	return Resolution{
		Currency:    cur,
		CountryCode: country,
		Symbol:      cur.Symbol(),
		Flag:        flagFor(country),
		Detected:    detected,
		Source:      source,
	}
}

// flagFor renders a two-letter code as regional indicator symbols.
func flagFor(country string) string {
	if country == "EU" {
		return "🇪🇺"
	}
	if len(country) != 2 {
		return ""
	}
	var b strings.Builder
	for _, ch := range strings.ToUpper(country) {
		if ch < 'A' || ch > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (ch - 'A'))
	}
	return b.String()
}

func isPublicIP(raw string) bool {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return false
	}
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast())
}

// ClientIP extracts the caller address from proxy headers or the socket.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
