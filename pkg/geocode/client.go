// Package geocode turns structured addresses into coordinates via Nominatim,
// using progressive query relaxation with a calibrated confidence score.
package geocode

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Address is a structured geocoding request. Street and City are mandatory;
// the remaining components are progressively dropped during relaxation.
type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city"`
	District    string `json:"district,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Result is the single best geocoding outcome for an address.
type Result struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Label      string  `json:"label"`
	Provider   string  `json:"provider"`
	Confidence float64 `json:"confidence"`
}

// InputError reports a missing mandatory address component. It fails fast:
// no network call is attempted.
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("geocode: %s is required", e.Field)
}

// NotFoundError reports that no acceptable result survived any relaxation
// attempt. This is a legitimate terminal outcome, distinct from an upstream
// failure.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("geocode: address not found: %s", e.Query)
}

// Client geocodes structured addresses.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	countryCode string
	limiter     *rate.Limiter
	cache       *gocache.Cache

	// attemptDiscount erodes confidence per relaxation step; resultLimit
	// caps results requested per attempt.
	attemptDiscount float64
	resultLimit     int
}

// Option configures the geocode client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the Nominatim endpoint (used in tests and for
// self-hosted instances).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header required by the Nominatim usage
// policy.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit sets the requests-per-second limit toward Nominatim.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithAttemptDiscount overrides the per-relaxation-step confidence discount.
func WithAttemptDiscount(d float64) Option {
	return func(c *Client) { c.attemptDiscount = d }
}

// WithCacheTTL sets the TTL for per-address result caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = gocache.New(ttl, 2*ttl) }
}

// NewClient creates a geocode client. Nominatim's usage policy allows one
// request per second for unattended use, which is the default here.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		baseURL:         defaultBaseURL,
		userAgent:       "enrich-cli/1.0",
		countryCode:     "pt",
		limiter:         rate.NewLimiter(1, 1),
		cache:           gocache.New(12*time.Hour, 24*time.Hour),
		attemptDiscount: 0.08,
		resultLimit:     8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cacheKey builds the cache key for an address, mirroring the relaxation
// inputs so equivalent requests collapse to one upstream call.
func cacheKey(a Address) string {
	return strings.Join([]string{
		collapse(a.Street),
		collapse(a.HouseNumber),
		collapse(a.PostalCode),
		collapse(a.City),
		collapse(a.District),
		collapse(a.Country),
	}, "|")
}

// collapse trims and squeezes internal whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
