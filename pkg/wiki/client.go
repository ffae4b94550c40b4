// Package wiki looks up points of interest on the Portuguese Wikipedia,
// combining a geosearch around the point with a full-text title-search
// fallback and validating article coordinates against the point being
// enriched.
package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roteiro-pt/enrich-cli/internal/geo"
	"github.com/roteiro-pt/enrich-cli/internal/model"
	"github.com/roteiro-pt/enrich-cli/internal/textnorm"
)

const (
	defaultAPIURL  = "https://pt.wikipedia.org/w/api.php"
	defaultPageURL = "https://pt.wikipedia.org/wiki/"

	// geoSearchRadiusM bounds the geosearch fallback to the immediate
	// surroundings of the point.
	geoSearchRadiusM = 800
	geoSearchLimit   = 20
)

// Client queries the MediaWiki API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	pageURL    string
	userAgent  string
	limiter    *rate.Limiter
	cache      *gocache.Cache

	// maxDistanceKm rejects articles whose own coordinates sit too far from
	// the point being enriched.
	maxDistanceKm float64
}

// Option configures the wiki client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIURL overrides the MediaWiki API endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithPageURL overrides the article URL prefix.
func WithPageURL(u string) Option {
	return func(c *Client) { c.pageURL = u }
}

// WithRateLimit sets the requests-per-second limit toward the API.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithMaxDistanceKm overrides the article coordinate validation radius.
func WithMaxDistanceKm(km float64) Option {
	return func(c *Client) { c.maxDistanceKm = km }
}

// WithCacheTTL sets the TTL for per-name lookup caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = gocache.New(ttl, 2*ttl) }
}

// NewClient creates a wiki client with conservative defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		apiURL:        defaultAPIURL,
		pageURL:       defaultPageURL,
		userAgent:     "enrich-cli/1.0",
		limiter:       rate.NewLimiter(2, 1),
		cache:         gocache.New(12*time.Hour, 24*time.Hour),
		maxDistanceKm: 60,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup finds the best-matching article for a named point. When coordinates
// are known a geosearch around the point runs first; title search takes over
// when it comes up empty. A nil candidate with a nil error means no
// acceptable article exists.
func (c *Client) Lookup(ctx context.Context, name string, lat, lon *float64) (*model.Candidate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	key := cacheKey(name, lat, lon)
	if cached, ok := c.cache.Get(key); ok {
		if cand, found := cached.(model.Candidate); found {
			return &cand, nil
		}
		return nil, nil
	}

	var title string
	var err error
	if lat != nil && lon != nil {
		title, err = c.geoSearchTitle(ctx, name, *lat, *lon)
		if err != nil {
			return nil, err
		}
	}
	if title == "" {
		title, err = c.searchTitle(ctx, name)
		if err != nil {
			return nil, err
		}
	}
	if title == "" {
		c.cache.SetDefault(key, nil)
		return nil, nil
	}

	page, err := c.fetchSummary(ctx, title)
	if err != nil {
		return nil, err
	}
	if page == nil {
		c.cache.SetDefault(key, nil)
		return nil, nil
	}

	if lat != nil && lon != nil && len(page.Coordinates) > 0 {
		dist := geo.HaversineKm(*lat, *lon, page.Coordinates[0].Lat, page.Coordinates[0].Lon)
		if dist > c.maxDistanceKm {
			zap.L().Debug("rejecting distant article",
				zap.String("title", page.Title),
				zap.Float64("distance_km", dist),
			)
			c.cache.SetDefault(key, nil)
			return nil, nil
		}
	}

	cand := model.Candidate{
		Source:      "wikipedia",
		SourceID:    page.Title,
		Title:       page.Title,
		Description: strings.TrimSpace(page.Extract),
		URL:         c.articleURL(page.Title),
	}
	if page.Thumbnail != nil {
		cand.ImageURL = page.Thumbnail.Source
	}
	if len(page.Coordinates) > 0 {
		cand.Lat = &page.Coordinates[0].Lat
		cand.Lon = &page.Coordinates[0].Lon
	}

	c.cache.SetDefault(key, cand)
	return &cand, nil
}

func (c *Client) articleURL(title string) string {
	return c.pageURL + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func cacheKey(name string, lat, lon *float64) string {
	key := textnorm.Normalize(name)
	if lat != nil && lon != nil {
		// Rounded to ~1 km buckets so nearby re-lookups share one entry while
		// same-named points in different towns stay apart.
		key += fmt.Sprintf("|%.2f|%.2f", *lat, *lon)
	}
	return key
}
