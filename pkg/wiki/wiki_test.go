package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiStub struct {
	searchHits  []string
	geoHits     []map[string]any
	pages       []map[string]any
	searchCalls int
	geoCalls    int
}

func (s *apiStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")

		var payload map[string]any
		switch q.Get("list") {
		case "search":
			s.searchCalls++
			hits := make([]map[string]any, 0, len(s.searchHits))
			for _, h := range s.searchHits {
				hits = append(hits, map[string]any{"title": h})
			}
			payload = map[string]any{"query": map[string]any{"search": hits}}
		case "geosearch":
			s.geoCalls++
			payload = map[string]any{"query": map[string]any{"geosearch": s.geoHits}}
		default:
			assert.Equal(t, "extracts|pageimages|coordinates", q.Get("prop"))
			payload = map[string]any{"query": map[string]any{"pages": s.pages}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}
}

func newTestClient(t *testing.T, stub *apiStub) *Client {
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(WithAPIURL(srv.URL), WithRateLimit(1000))
}

func fl(v float64) *float64 { return &v }

func TestLookupByGeoSearch(t *testing.T) {
	stub := &apiStub{
		geoHits: []map[string]any{
			{"title": "Jardim da Estrela", "lat": 38.7139, "lon": -9.1602, "dist": 50.0},
			{"title": "Basílica da Estrela", "lat": 38.7136, "lon": -9.1604, "dist": 80.0},
		},
		pages: []map[string]any{{
			"title":   "Basílica da Estrela",
			"extract": "Basílica tardo-barroca de Lisboa.",
		}},
	}

	cand, err := newTestClient(t, stub).Lookup(context.Background(), "Basilica da Estrela", fl(38.7136), fl(-9.1604))
	require.NoError(t, err)
	require.NotNil(t, cand)

	// The title resembling the query wins over the nearer unrelated hit, and
	// the geosearch hit makes a title search unnecessary.
	assert.Equal(t, "Basílica da Estrela", cand.Title)
	assert.Equal(t, 1, stub.geoCalls)
	assert.Equal(t, 0, stub.searchCalls)
}

func TestLookupTitleSearchFallback(t *testing.T) {
	stub := &apiStub{
		searchHits: []string{"Torre de Belém"},
		pages: []map[string]any{{
			"title":       "Torre de Belém",
			"extract":     "A Torre de Belém é uma fortificação do século XVI.",
			"thumbnail":   map[string]any{"source": "https://upload.example/belem.jpg"},
			"coordinates": []map[string]any{{"lat": 38.6916, "lon": -9.2160}},
		}},
	}

	cand, err := newTestClient(t, stub).Lookup(context.Background(), "Torre de Belém", fl(38.6916), fl(-9.2160))
	require.NoError(t, err)
	require.NotNil(t, cand)

	// Nothing in the geosearch window, so title search found the article.
	assert.Equal(t, 1, stub.geoCalls)
	assert.Equal(t, 1, stub.searchCalls)

	assert.Equal(t, "wikipedia", cand.Source)
	assert.Equal(t, "Torre de Belém", cand.Title)
	assert.Contains(t, cand.Description, "fortificação")
	assert.Equal(t, "https://upload.example/belem.jpg", cand.ImageURL)
	assert.Equal(t, "https://pt.wikipedia.org/wiki/Torre_de_Bel%C3%A9m", cand.URL)
	require.NotNil(t, cand.Lat)
	assert.InDelta(t, 38.6916, *cand.Lat, 1e-6)
}

func TestLookupGeoSearchNearestWhenNoTitleMatch(t *testing.T) {
	stub := &apiStub{
		geoHits: []map[string]any{
			{"title": "Largo do Carmo", "lat": 38.7120, "lon": -9.1406, "dist": 30.0},
			{"title": "Elevador de Santa Justa", "lat": 38.7123, "lon": -9.1393, "dist": 70.0},
		},
		pages: []map[string]any{{
			"title":   "Largo do Carmo",
			"extract": "Praça no Chiado.",
		}},
	}

	cand, err := newTestClient(t, stub).Lookup(context.Background(), "Fonte Desconhecida", fl(38.7120), fl(-9.1406))
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, "Largo do Carmo", cand.Title)
}

func TestLookupRejectsDistantArticle(t *testing.T) {
	stub := &apiStub{
		searchHits: []string{"Castelo de Guimarães"},
		pages: []map[string]any{{
			"title":       "Castelo de Guimarães",
			"extract":     "Castelo medieval no norte.",
			"coordinates": []map[string]any{{"lat": 41.4479, "lon": -8.2902}},
		}},
	}

	// The point is in Faro, roughly 450 km from the article coordinates.
	cand, err := newTestClient(t, stub).Lookup(context.Background(), "Castelo", fl(37.0194), fl(-7.9304))
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestLookupNoResults(t *testing.T) {
	stub := &apiStub{}
	cand, err := newTestClient(t, stub).Lookup(context.Background(), "Nada Disto Existe", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, cand)
	// Without coordinates the geosearch never fires.
	assert.Equal(t, 0, stub.geoCalls)
}

func TestLookupMissingPage(t *testing.T) {
	stub := &apiStub{
		searchHits: []string{"Página Fantasma"},
		pages:      []map[string]any{{"title": "Página Fantasma", "missing": true}},
	}
	cand, err := newTestClient(t, stub).Lookup(context.Background(), "Página Fantasma", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestLookupCachesNegativeResults(t *testing.T) {
	stub := &apiStub{}
	c := newTestClient(t, stub)

	_, err := c.Lookup(context.Background(), "Nada", nil, nil)
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "Nada", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.searchCalls)
}

func TestLookupCacheKeyedByLocation(t *testing.T) {
	stub := &apiStub{
		geoHits: []map[string]any{
			{"title": "Igreja Matriz", "lat": 41.5503, "lon": -8.4201, "dist": 40.0},
		},
		pages: []map[string]any{{
			"title":   "Igreja Matriz",
			"extract": "Igreja paroquial.",
		}},
	}
	c := newTestClient(t, stub)

	// Same name in Braga and in Faro: each location gets its own lookup
	// instead of the second inheriting the first's cached article.
	_, err := c.Lookup(context.Background(), "Igreja Matriz", fl(41.5503), fl(-8.4201))
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), "Igreja Matriz", fl(37.0194), fl(-7.9304))
	require.NoError(t, err)
	assert.Equal(t, 2, stub.geoCalls)

	// The same point is served from cache.
	_, err = c.Lookup(context.Background(), "Igreja Matriz", fl(41.5503), fl(-8.4201))
	require.NoError(t, err)
	assert.Equal(t, 2, stub.geoCalls)
}

func TestArticleURLEscaping(t *testing.T) {
	c := NewClient()
	assert.Equal(t,
		"https://pt.wikipedia.org/wiki/Mosteiro_dos_Jer%C3%B3nimos",
		c.articleURL("Mosteiro dos Jerónimos"))
}
