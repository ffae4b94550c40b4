// Package registry queries the national heritage inventory (SIPA) over its
// WFS endpoint and maps monument features to enrichment candidates.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/roteiro-pt/enrich-cli/internal/model"
	"github.com/roteiro-pt/enrich-cli/internal/resilience"
	"github.com/roteiro-pt/enrich-cli/internal/textnorm"
)

const (
	defaultBaseURL  = "https://geo.patrimoniocultural.gov.pt/geoserver/wfs"
	defaultTypeName = "sipa:monumentos"

	// bboxDelta is the half-width in degrees of the search window around a
	// point of interest.
	bboxDelta = 0.01
)

// Client talks to a WFS 2.0 endpoint serving the heritage inventory layer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	typeName   string
	userAgent  string
	limiter    *rate.Limiter
	cache      *gocache.Cache
	maxResults int
}

// Option configures the registry client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the WFS endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTypeName overrides the WFS feature type queried.
func WithTypeName(name string) Option {
	return func(c *Client) { c.typeName = name }
}

// WithRateLimit sets the requests-per-second limit toward the WFS server.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithCacheTTL sets the TTL for per-query response caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = gocache.New(ttl, 2*ttl) }
}

// NewClient creates a registry client with conservative defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    defaultBaseURL,
		typeName:   defaultTypeName,
		userAgent:  "enrich-cli/1.0",
		limiter:    rate.NewLimiter(2, 1),
		cache:      gocache.New(12*time.Hour, 24*time.Hour),
		maxResults: 25,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchByName finds inventory entries whose name matches the given name.
// The server-side filter is a broad ILIKE; results are narrowed locally with
// accent-insensitive substring matching in both directions, since the
// inventory name is often longer ("Igreja Paroquial de X / Igreja de Y").
func (c *Client) SearchByName(ctx context.Context, name string) ([]model.Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	filter := fmt.Sprintf("INF_NOME ILIKE '%%%s%%'", escapeCQL(firstSignificantToken(name)))
	features, err := c.getFeatures(ctx, url.Values{"CQL_FILTER": {filter}})
	if err != nil {
		return nil, err
	}

	normalized := textnorm.Normalize(name)
	out := make([]model.Candidate, 0, len(features))
	for _, f := range features {
		fn := textnorm.Normalize(f.Title)
		if fn == "" {
			continue
		}
		if strings.Contains(fn, normalized) || strings.Contains(normalized, fn) {
			out = append(out, f)
		}
	}
	return out, nil
}

// SearchByBbox finds inventory entries inside a small window around a point.
func (c *Client) SearchByBbox(ctx context.Context, lat, lon float64) ([]model.Candidate, error) {
	bbox := fmt.Sprintf("%f,%f,%f,%f", lat-bboxDelta, lon-bboxDelta, lat+bboxDelta, lon+bboxDelta)
	return c.getFeatures(ctx, url.Values{"bbox": {bbox}})
}

func (c *Client) getFeatures(ctx context.Context, extra url.Values) ([]model.Candidate, error) {
	params := url.Values{
		"service":  {"WFS"},
		"version":  {"2.0.0"},
		"request":  {"GetFeature"},
		"typeName": {c.typeName},
		"count":    {fmt.Sprintf("%d", c.maxResults)},
	}
	for k, vs := range extra {
		params[k] = vs
	}

	key := params.Encode()
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]model.Candidate), nil
	}

	body, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), "registry-wfs",
		func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, key)
		})
	if err != nil {
		return nil, err
	}

	features, err := parseFeatureCollection(body)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, features)
	return features, nil
}

func (c *Client) fetch(ctx context.Context, rawQuery string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "registry: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+rawQuery, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "registry: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("registry: wfs returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewUpstreamError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read body")
	}
	return body, nil
}

// escapeCQL doubles single quotes so names like "Sé d'Aveiro" survive the
// CQL literal.
func escapeCQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// firstSignificantToken picks the longest token of the name to anchor the
// server-side ILIKE filter; short generic words ("de", "da") would match
// almost everything.
func firstSignificantToken(name string) string {
	best := ""
	for _, tok := range textnorm.Tokenize(name) {
		if len(tok) > len(best) {
			best = tok
		}
	}
	if best == "" {
		return strings.ToLower(strings.TrimSpace(name))
	}
	return best
}
