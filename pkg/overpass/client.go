// Package overpass pulls points of interest out of OpenStreetMap through the
// Overpass API, grouped into themed queries over the mainland bounding box.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/roteiro-pt/enrich-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://overpass-api.de/api/interpreter"

	// mainlandBbox covers continental Portugal (south,west,north,east).
	mainlandBbox = "36.8,-9.7,42.2,-6.0"
)

// Client runs Overpass QL queries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	timeout    time.Duration
}

// Option configures the Overpass client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the Overpass interpreter endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRateLimit sets the requests-per-second limit toward Overpass.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewClient creates an Overpass client. The public interpreter enforces
// aggressive fairness limits, so the default rate is one query per ten
// seconds and the server-side timeout is generous.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 3 * time.Minute},
		baseURL:    defaultBaseURL,
		userAgent:  "enrich-cli/1.0",
		limiter:    rate.NewLimiter(rate.Limit(0.1), 1),
		timeout:    120 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one Overpass QL query and returns its elements.
func (c *Client) Run(ctx context.Context, query string) ([]Element, error) {
	body, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), "overpass",
		func(ctx context.Context) ([]byte, error) {
			return c.post(ctx, query)
		})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Elements []Element `json:"elements"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "overpass: parse response")
	}
	return resp.Elements, nil
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit")
	}

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("overpass: interpreter returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewUpstreamError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read body")
	}
	return body, nil
}

// BuildCulturalQuery selects castles, palaces, monuments and museums.
func (c *Client) BuildCulturalQuery() string {
	return c.buildQuery(
		`nwr["historic"~"^(castle|fort|monument|memorial|ruins)$"]["name"]`,
		`nwr["tourism"="museum"]["name"]`,
		`nwr["building"="palace"]["name"]`,
	)
}

// BuildChurchQuery selects churches, chapels and monasteries.
func (c *Client) BuildChurchQuery() string {
	return c.buildQuery(
		`nwr["amenity"="place_of_worship"]["name"]`,
		`nwr["historic"="monastery"]["name"]`,
	)
}

// BuildNatureQuery selects parks, gardens and viewpoints.
func (c *Client) BuildNatureQuery() string {
	return c.buildQuery(
		`nwr["leisure"~"^(park|garden)$"]["name"]`,
		`nwr["tourism"="viewpoint"]["name"]`,
	)
}

func (c *Client) buildQuery(selectors ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d][bbox:%s];\n(\n", int(c.timeout.Seconds()), mainlandBbox)
	for _, sel := range selectors {
		b.WriteString("  " + sel + ";\n")
	}
	b.WriteString(");\nout center tags;")
	return b.String()
}
