package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/roteiro-pt/enrich-cli/internal/resilience"
)

// rawResult is one entry from the Nominatim /search response (jsonv2).
// Coordinates arrive as strings and must be parsed.
type rawResult struct {
	Lat         string     `json:"lat"`
	Lon         string     `json:"lon"`
	DisplayName string     `json:"display_name"`
	Importance  *float64   `json:"importance"`
	Type        string     `json:"type"`
	Address     rawAddress `json:"address"`
}

type rawAddress struct {
	CountryCode string `json:"country_code"`
	Postcode    string `json:"postcode"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
}

// search issues one /search call for a free-form query string.
func (c *Client) search(ctx context.Context, query string) ([]rawResult, error) {
	return resilience.DoVal(ctx, resilience.DefaultRetryConfig(), "nominatim",
		func(ctx context.Context) ([]rawResult, error) {
			return c.searchOnce(ctx, query)
		})
}

func (c *Client) searchOnce(ctx context.Context, query string) ([]rawResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"format":          {"jsonv2"},
		"limit":           {strconv.Itoa(c.resultLimit)},
		"addressdetails":  {"1"},
		"countrycodes":    {c.countryCode},
		"accept-language": {"pt"},
		"q":               {query},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewUpstreamError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var results []rawResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	return results, nil
}

// coordinates parses the string lat/lon pair; ok is false when either side
// is missing or malformed.
func (r *rawResult) coordinates() (lat, lon float64, ok bool) {
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
