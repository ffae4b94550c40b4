package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGML = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0"
    xmlns:gml="http://www.opengis.net/gml/3.2"
    xmlns:sipa="http://sipa.example">
  <wfs:member>
    <sipa:monumentos>
      <sipa:COD_SIG>PT031106100042</sipa:COD_SIG>
      <sipa:INF_NOME>Castelo de São Jorge</sipa:INF_NOME>
      <sipa:INF_DESCRICAO>Fortaleza medieval sobre a colina mais alta de Lisboa.</sipa:INF_DESCRICAO>
      <sipa:INF_URL>http://www.monumentos.gov.pt/site/app_pagesuser/SIPA.aspx?id=42</sipa:INF_URL>
      <gml:Point>
        <gml:pos>38.7139 -9.1335</gml:pos>
      </gml:Point>
    </sipa:monumentos>
  </wfs:member>
  <wfs:member>
    <sipa:monumentos>
      <sipa:COD_SIG>PT031106100099</sipa:COD_SIG>
      <sipa:INF_NOME>Igreja de Santo António</sipa:INF_NOME>
    </sipa:monumentos>
  </wfs:member>
  <wfs:member>
    <sipa:monumentos>
      <sipa:COD_SIG>PT000000000001</sipa:COD_SIG>
      <sipa:INF_NOME></sipa:INF_NOME>
    </sipa:monumentos>
  </wfs:member>
</wfs:FeatureCollection>`

func TestParseFeatureCollection(t *testing.T) {
	candidates, err := parseFeatureCollection([]byte(sampleGML))
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	castle := candidates[0]
	assert.Equal(t, "registry", castle.Source)
	assert.Equal(t, "PT031106100042", castle.SourceID)
	assert.Equal(t, "Castelo de São Jorge", castle.Title)
	assert.Contains(t, castle.Description, "Fortaleza medieval")
	require.NotNil(t, castle.Lat)
	require.NotNil(t, castle.Lon)
	assert.InDelta(t, 38.7139, *castle.Lat, 1e-6)
	assert.InDelta(t, -9.1335, *castle.Lon, 1e-6)

	// Coordinates absent is fine; an empty name is not.
	church := candidates[1]
	assert.Equal(t, "Igreja de Santo António", church.Title)
	assert.Nil(t, church.Lat)
}

func TestParseFeatureCollectionCoordinatesFallback(t *testing.T) {
	body := `<FeatureCollection xmlns:gml="http://www.opengis.net/gml">
	  <featureMember>
	    <monumentos>
	      <COD_SIG>X1</COD_SIG>
	      <INF_NOME>Palácio da Pena</INF_NOME>
	      <gml:Point><gml:coordinates>-9.3905,38.7876</gml:coordinates></gml:Point>
	    </monumentos>
	  </featureMember>
	</FeatureCollection>`

	candidates, err := parseFeatureCollection([]byte(body))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.NotNil(t, candidates[0].Lat)
	assert.InDelta(t, 38.7876, *candidates[0].Lat, 1e-6)
	assert.InDelta(t, -9.3905, *candidates[0].Lon, 1e-6)
}

func TestParseFeatureCollectionRejectsGarbage(t *testing.T) {
	_, err := parseFeatureCollection([]byte("not xml at all <<<"))
	require.Error(t, err)
}

func TestSearchByNameFiltersLocally(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("CQL_FILTER")
		assert.Equal(t, "GetFeature", r.URL.Query().Get("request"))
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleGML))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	candidates, err := c.SearchByName(context.Background(), "Castelo de São Jorge")
	require.NoError(t, err)

	assert.Contains(t, gotFilter, "ILIKE")
	assert.Contains(t, gotFilter, "castelo")

	// The church in the payload does not match the query name and is
	// filtered out client-side.
	require.Len(t, candidates, 1)
	assert.Equal(t, "Castelo de São Jorge", candidates[0].Title)
}

func TestSearchByNameBlankQuery(t *testing.T) {
	c := NewClient()
	candidates, err := c.SearchByName(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearchByBboxWindow(t *testing.T) {
	var gotBbox string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBbox = r.URL.Query().Get("bbox")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleGML))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	candidates, err := c.SearchByBbox(context.Background(), 38.7139, -9.1335)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, "38.703900,-9.143500,38.723900,-9.123500", gotBbox)
}

func TestSearchCachesResponses(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sampleGML))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.SearchByBbox(context.Background(), 38.7139, -9.1335)
	require.NoError(t, err)
	_, err = c.SearchByBbox(context.Background(), 38.7139, -9.1335)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestEscapeCQL(t *testing.T) {
	assert.Equal(t, "se d''aveiro", escapeCQL("se d'aveiro"))
}
