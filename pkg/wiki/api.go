package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/roteiro-pt/enrich-cli/internal/resilience"
	"github.com/roteiro-pt/enrich-cli/internal/textnorm"
)

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type geoSearchResponse struct {
	Query struct {
		GeoSearch []struct {
			Title string  `json:"title"`
			Lat   float64 `json:"lat"`
			Lon   float64 `json:"lon"`
			Dist  float64 `json:"dist"`
		} `json:"geosearch"`
	} `json:"query"`
}

type pageSummary struct {
	Title       string  `json:"title"`
	Extract     string  `json:"extract"`
	Missing     bool    `json:"missing"`
	Thumbnail   *struct{ Source string } `json:"thumbnail"`
	Coordinates []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates"`
}

type summaryResponse struct {
	Query struct {
		Pages []pageSummary `json:"pages"`
	} `json:"query"`
}

// searchTitle runs a full-text search and returns the top hit's title, or
// empty when nothing was found.
func (c *Client) searchTitle(ctx context.Context, name string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {name},
		"srlimit":  {"5"},
	}
	var resp searchResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

// geoSearchTitle lists articles near a point and prefers the closest whose
// title resembles the requested name; absent a resemblance the nearest
// article wins.
func (c *Client) geoSearchTitle(ctx context.Context, name string, lat, lon float64) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"geosearch"},
		"gscoord":  {fmt.Sprintf("%f|%f", lat, lon)},
		"gsradius": {fmt.Sprintf("%d", geoSearchRadiusM)},
		"gslimit":  {fmt.Sprintf("%d", geoSearchLimit)},
	}
	var resp geoSearchResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return "", err
	}
	if len(resp.Query.GeoSearch) == 0 {
		return "", nil
	}

	normalized := textnorm.Normalize(name)
	for _, hit := range resp.Query.GeoSearch {
		title := textnorm.Normalize(hit.Title)
		if strings.Contains(title, normalized) || strings.Contains(normalized, title) {
			return hit.Title, nil
		}
	}
	return resp.Query.GeoSearch[0].Title, nil
}

// fetchSummary loads the intro extract, lead image and coordinates of one
// article. A nil page with a nil error means the article does not exist.
func (c *Client) fetchSummary(ctx context.Context, title string) (*pageSummary, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|pageimages|coordinates"},
		"titles":      {title},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"piprop":      {"thumbnail"},
		"pithumbsize": {"640"},
	}
	var resp summaryResponse
	if err := c.call(ctx, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return nil, nil
	}
	return &resp.Query.Pages[0], nil
}

func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	body, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), "wikipedia",
		func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, params.Encode())
		})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "wiki: parse response")
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, rawQuery string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "wiki: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+rawQuery, nil)
	if err != nil {
		return nil, eris.Wrap(err, "wiki: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wiki: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("wiki: api returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewUpstreamError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wiki: read body")
	}
	return body, nil
}
