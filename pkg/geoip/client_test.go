package geoip

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestLookupParsesCountry(t *testing.T) {
	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"ip":"85.1.2.3","country_code":"ch","country_name":"Switzerland","city":"Geneva"}`), nil
	})

	client := NewClient(WithBaseURL("http://geo.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	loc, err := client.Lookup(context.Background(), "85.1.2.3")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if capturedURL != "http://geo.test/85.1.2.3/json/" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if loc.CountryCode != "CH" || loc.City != "Geneva" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestLookupErrorsAreDependencyErrors(t *testing.T) {
	cases := map[string]*http.Response{
		"status":   jsonResponse(http.StatusTooManyRequests, `rate limited`),
		"rejected": jsonResponse(http.StatusOK, `{"error":true,"reason":"Reserved IP Address"}`),
		"empty":    jsonResponse(http.StatusOK, `{"ip":"1.1.1.1"}`),
		"garbage":  jsonResponse(http.StatusOK, `not json`),
	}
	for name, resp := range cases {
		resp := resp
		rt := roundTripFunc(func(*http.Request) (*http.Response, error) { return resp, nil })
		client := NewClient(WithHTTPClient(&http.Client{Transport: rt}))
		_, err := client.Lookup(context.Background(), "1.1.1.1")
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
			t.Fatalf("%s: expected dependency error, got %v", name, err)
		}
	}
}

func TestLookupRequiresIP(t *testing.T) {
	_, err := NewClient().Lookup(context.Background(), "  ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
