package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roteiro-pt/enrich-cli/internal/store"
	"github.com/roteiro-pt/enrich-cli/pkg/overpass"
)

func TestImportGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "elements": [
		    {"type": "node", "id": 1, "lat": 38.7139, "lon": -9.1335,
		     "tags": {"name": "Castelo de São Jorge", "historic": "castle"}},
		    {"type": "way", "id": 2, "center": {"lat": 38.6916, "lon": -9.2160},
		     "tags": {"name": "Padrão dos Descobrimentos", "historic": "monument"}},
		    {"type": "node", "id": 3, "lat": 38.70, "lon": -9.14,
		     "tags": {"historic": "ruins"}}
		  ]
		}`))
	}))
	defer srv.Close()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	client := overpass.NewClient(overpass.WithBaseURL(srv.URL), overpass.WithRateLimit(1000))
	n, err := importGroup(ctx, s, client, "cultural")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "the unnamed element is dropped")

	pois, err := s.FindNeedingEnrichment(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, "osm:node/1", pois[0].ExternalOSMID)
	assert.Equal(t, "castle", pois[0].Category)
	assert.Equal(t, "monument", pois[1].Category)
}

func TestImportGroupUnknown(t *testing.T) {
	client := overpass.NewClient()
	_, err := importGroup(context.Background(), nil, client, "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown import group")
}
