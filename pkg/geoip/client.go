package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/privilegia/privilegia-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://ipapi.co"
	defaultTimeout             = 2 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errIPRequired = errors.New("ip address is required")

// Location is the subset of the lookup payload we consume.
type Location struct {
	IP          string
	CountryCode string
	CountryName string
	City        string
}

// Client resolves IP addresses to countries through a JSON lookup API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the lookup base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout, Transport: c.httpClient.Transport}
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Lookup returns the location for ip.
func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geoip client not configured")
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, errIPRequired, "geoip lookup")
	}

	endpoint := fmt.Sprintf("%s/%s/json/", strings.TrimRight(c.baseURL, "/"), url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geoip request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "privilegia-backend")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geoip request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geoip request failed")
	}

	var payload struct {
		IP          string `json:"ip"`
		CountryCode string `json:"country_code"`
		CountryName string `json:"country_name"`
		City        string `json:"city"`
		Error       bool   `json:"error"`
		Reason      string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geoip response")
	}
	if payload.Error {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New(payload.Reason), "geoip lookup rejected")
	}
	if strings.TrimSpace(payload.CountryCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "geoip response missing country")
	}

	return &Location{
		IP:          payload.IP,
		CountryCode: strings.ToUpper(strings.TrimSpace(payload.CountryCode)),
		CountryName: payload.CountryName,
		City:        payload.City,
	}, nil
}
