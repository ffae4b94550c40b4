package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fl(v float64) *float64 { return &v }

func testServer(t *testing.T, handler func(q string) []rawResult) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		queries = append(queries, q)

		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("addressdetails"))
		assert.Equal(t, "pt", r.URL.Query().Get("countrycodes"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(handler(q)))
	}))
	t.Cleanup(srv.Close)
	return srv, &queries
}

func testClient(srv *httptest.Server) *Client {
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
}

func TestGeocodeRequiresStreetAndCity(t *testing.T) {
	c := NewClient()

	_, err := c.Geocode(context.Background(), Address{City: "Lisboa"})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "street", inputErr.Field)

	_, err = c.Geocode(context.Background(), Address{Street: "Rua Augusta"})
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "city", inputErr.Field)
}

func TestGeocodeFullAddressFirstAttempt(t *testing.T) {
	srv, queries := testServer(t, func(q string) []rawResult {
		return []rawResult{{
			Lat:         "38.7100",
			Lon:         "-9.1370",
			DisplayName: "Rua Augusta 12, 1100-048, Lisboa, Portugal",
			Importance:  fl(0.5),
			Address:     rawAddress{CountryCode: "pt", City: "Lisboa", Postcode: "1100-048"},
		}}
	})

	res, err := testClient(srv).Geocode(context.Background(), Address{
		Street:      "Rua Augusta",
		HouseNumber: "12",
		PostalCode:  "1100-048",
		City:        "Lisboa",
	})
	require.NoError(t, err)

	assert.Len(t, *queries, 1)
	assert.Equal(t, "Rua Augusta 12, 1100-048, Lisboa, Portugal", (*queries)[0])
	assert.InDelta(t, 38.7100, res.Lat, 1e-6)
	assert.InDelta(t, -9.1370, res.Lon, 1e-6)
	assert.Equal(t, "nominatim", res.Provider)
	assert.Greater(t, res.Confidence, 0.9)
}

func TestGeocodeRelaxesAndDiscountsConfidence(t *testing.T) {
	result := rawResult{
		Lat:         "41.1460",
		Lon:         "-8.6110",
		DisplayName: "Rua das Flores, Porto, Portugal",
		Importance:  fl(0.4),
		Address:     rawAddress{CountryCode: "pt", City: "Porto"},
	}

	// Only the street-only form (last attempt) yields a hit.
	srv, queries := testServer(t, func(q string) []rawResult {
		if q == "Rua das Flores, Porto, Portugal" {
			return []rawResult{result}
		}
		return nil
	})

	addr := Address{
		Street:      "Rua das Flores",
		HouseNumber: "99",
		PostalCode:  "4050-262",
		City:        "Porto",
	}
	relaxed, err := testClient(srv).Geocode(context.Background(), addr)
	require.NoError(t, err)
	assert.Len(t, *queries, 4)

	// The same result from a fresh client's first attempt scores higher.
	srvDirect, _ := testServer(t, func(string) []rawResult { return []rawResult{result} })
	direct, err := testClient(srvDirect).Geocode(context.Background(), Address{
		Street: "Rua das Flores",
		City:   "Porto",
	})
	require.NoError(t, err)
	assert.Less(t, relaxed.Confidence, direct.Confidence)
	assert.InDelta(t, 3*0.08, direct.Confidence-relaxed.Confidence, 1e-9)
}

func TestGeocodeSkipsDuplicateAttempts(t *testing.T) {
	srv, queries := testServer(t, func(string) []rawResult { return nil })

	_, err := testClient(srv).Geocode(context.Background(), Address{
		Street: "Rua Augusta",
		City:   "Lisboa",
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	// Without a house number or postal code, all four ladder steps collapse
	// into one query.
	assert.Len(t, *queries, 1)
}

func TestGeocodeNotFound(t *testing.T) {
	srv, _ := testServer(t, func(string) []rawResult { return nil })

	_, err := testClient(srv).Geocode(context.Background(), Address{
		Street:      "Rua Inexistente",
		HouseNumber: "1",
		City:        "Nenhures",
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Query, "Rua Inexistente")
}

func TestGeocodeFiltersForeignAndMalformedResults(t *testing.T) {
	srv, _ := testServer(t, func(string) []rawResult {
		return []rawResult{
			{Lat: "not-a-number", Lon: "-9.1", DisplayName: "broken"},
			{Lat: "40.4", Lon: "-3.7", DisplayName: "Madrid", Importance: fl(0.9),
				Address: rawAddress{CountryCode: "es"}},
			{Lat: "38.71", Lon: "-9.14", DisplayName: "Lisboa, Portugal", Importance: fl(0.3),
				Address: rawAddress{CountryCode: "pt", City: "Lisboa"}},
		}
	})

	res, err := testClient(srv).Geocode(context.Background(), Address{
		Street: "Rua Augusta",
		City:   "Lisboa",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lisboa, Portugal", res.Label)
}

func TestGeocodePrefersSpecificOverBroadType(t *testing.T) {
	srv, _ := testServer(t, func(string) []rawResult {
		return []rawResult{
			{Lat: "38.70", Lon: "-9.15", DisplayName: "Lisboa, Portugal", Importance: fl(0.8),
				Type: "administrative", Address: rawAddress{CountryCode: "pt", City: "Lisboa"}},
			{Lat: "38.7100", Lon: "-9.1370", DisplayName: "Rua Augusta, Lisboa, Portugal",
				Importance: fl(0.4), Type: "residential",
				Address: rawAddress{CountryCode: "pt", City: "Lisboa"}},
		}
	})

	res, err := testClient(srv).Geocode(context.Background(), Address{
		Street: "Rua Augusta",
		City:   "Lisboa",
	})
	require.NoError(t, err)
	assert.Equal(t, "Rua Augusta, Lisboa, Portugal", res.Label)
}

func TestGeocodeSettlementMatchesLoosely(t *testing.T) {
	// The town field matching the requested city by containment outweighs a
	// result whose settlement does not match at all.
	srv, _ := testServer(t, func(string) []rawResult {
		return []rawResult{
			{Lat: "41.13", Lon: "-8.61", DisplayName: "Avenida da República, Porto",
				Importance: fl(0.4), Address: rawAddress{CountryCode: "pt", City: "Porto"}},
			{Lat: "41.1240", Lon: "-8.6110", DisplayName: "Avenida da República, Santa Marinha",
				Importance: fl(0.4), Address: rawAddress{CountryCode: "pt", Town: "Vila Nova de Gaia"}},
		}
	})

	res, err := testClient(srv).Geocode(context.Background(), Address{
		Street: "Avenida da República",
		City:   "Gaia",
	})
	require.NoError(t, err)
	assert.Equal(t, "Avenida da República, Santa Marinha", res.Label)
}

func TestScoreResultClampsImportance(t *testing.T) {
	r := &rawResult{Importance: fl(5.0)}
	assert.InDelta(t, 0.6, scoreResult(r, Address{}), 1e-9)
}

func TestScoreResultPenalizesBroadTypeByContainment(t *testing.T) {
	specific := &rawResult{Importance: fl(0.4), Type: "residential"}
	broad := &rawResult{Importance: fl(0.4), Type: "administrative_boundary"}
	assert.Less(t, scoreResult(broad, Address{}), scoreResult(specific, Address{}))
}

func TestGeocodeCachesResults(t *testing.T) {
	srv, queries := testServer(t, func(string) []rawResult {
		return []rawResult{{
			Lat: "38.71", Lon: "-9.14", DisplayName: "Lisboa, Portugal",
			Importance: fl(0.3), Address: rawAddress{CountryCode: "pt", City: "Lisboa"},
		}}
	})

	c := testClient(srv)
	addr := Address{Street: "Rua Augusta", City: "Lisboa"}

	first, err := c.Geocode(context.Background(), addr)
	require.NoError(t, err)
	second, err := c.Geocode(context.Background(), addr)
	require.NoError(t, err)

	assert.Len(t, *queries, 1)
	assert.Equal(t, first, second)
}

func TestConfidenceClamping(t *testing.T) {
	assert.Equal(t, 1.0, confidence(2.0, 0, 0.08))
	assert.Equal(t, 0.0, confidence(-0.5, 0, 0.08))
	assert.Equal(t, 0.0, confidence(0.1, 3, 0.08))
	assert.InDelta(t, 0.5/1.1-0.08, confidence(0.5, 1, 0.08), 1e-9)
}
