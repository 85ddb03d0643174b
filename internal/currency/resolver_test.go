package currency

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/privilegia/privilegia-backend/pkg/enums"
	"github.com/privilegia/privilegia-backend/pkg/geoip"
)

type fakeLocator struct {
	country string
	err     error
	calls   int
	block   bool
}

func (f *fakeLocator) Lookup(ctx context.Context, ip string) (*geoip.Location, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &geoip.Location{IP: ip, CountryCode: f.country}, nil
}

type memoryCache struct {
	data map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", errors.New("miss")
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	key := "test"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func TestResolveExplicitWins(t *testing.T) {
	locator := &fakeLocator{country: "CH"}
	r := NewResolver(ResolverParams{Locator: locator})

	res := r.Resolve(context.Background(), "eur", "85.1.2.3")
	if res.Currency != enums.CurrencyEUR || res.Source != SourceExplicit {
		t.Fatalf("expected explicit EUR, got %+v", res)
	}
	if locator.calls != 0 {
		t.Fatalf("explicit currency must skip lookup")
	}
}

func TestResolveUnsupportedExplicitFallsThrough(t *testing.T) {
	r := NewResolver(ResolverParams{Locator: &fakeLocator{country: "DE"}})
	res := r.Resolve(context.Background(), "USD", "85.1.2.3")
	if res.Currency != enums.CurrencyEUR || res.Source != SourceGeoIP || !res.Detected {
		t.Fatalf("expected geoip EUR, got %+v", res)
	}
}

func TestResolveCountryMapping(t *testing.T) {
	cases := map[string]enums.Currency{
		"CH": enums.CurrencyCHF,
		"DE": enums.CurrencyEUR,
		"FR": enums.CurrencyEUR,
		"US": enums.CurrencyEUR,
	}
	for country, want := range cases {
		r := NewResolver(ResolverParams{Locator: &fakeLocator{country: country}})
		res := r.Resolve(context.Background(), "", "85.1.2.3")
		if res.Currency != want || res.CountryCode != country {
			t.Fatalf("%s: expected %s, got %+v", country, want, res)
		}
	}
	if !IsEurozone("it") || IsEurozone("CH") {
		t.Fatalf("unexpected eurozone membership")
	}
}

func TestResolveFallsBackToSwitzerland(t *testing.T) {
	cases := map[string]struct {
		ip      string
		locator *fakeLocator
	}{
		"loopback": {ip: "127.0.0.1", locator: &fakeLocator{country: "DE"}},
		"private":  {ip: "10.0.0.4", locator: &fakeLocator{country: "DE"}},
		"garbage":  {ip: "not-an-ip", locator: &fakeLocator{country: "DE"}},
		"failure":  {ip: "85.1.2.3", locator: &fakeLocator{err: errors.New("down")}},
		"timeout":  {ip: "85.1.2.3", locator: &fakeLocator{block: true}},
	}
	for name, tc := range cases {
		r := NewResolver(ResolverParams{Locator: tc.locator, Timeout: 10 * time.Millisecond})
		res := r.Resolve(context.Background(), "", tc.ip)
		if res.Currency != enums.CurrencyCHF || res.CountryCode != "CH" || res.Detected || res.Source != SourceDefault {
			t.Fatalf("%s: expected CHF default, got %+v", name, res)
		}
		if res.Flag != "🇨🇭" {
			t.Fatalf("%s: unexpected flag %q", name, res.Flag)
		}
	}
}

func TestResolveUsesCache(t *testing.T) {
	locator := &fakeLocator{country: "AT"}
	cache := &memoryCache{data: map[string]string{}}
	r := NewResolver(ResolverParams{Locator: locator, Cache: cache})

	for i := 0; i < 3; i++ {
		res := r.Resolve(context.Background(), "", "85.1.2.3")
		if res.CountryCode != "AT" {
			t.Fatalf("unexpected country %s", res.CountryCode)
		}
	}
	if locator.calls != 1 {
		t.Fatalf("expected one upstream lookup, got %d", locator.calls)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/pricing/detect-currency", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	if got := ClientIP(req); got != "192.0.2.10" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
	req.Header.Set("X-Real-IP", "198.51.100.2")
	if got := ClientIP(req); got != "198.51.100.2" {
		t.Fatalf("expected real ip, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
