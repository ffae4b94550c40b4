package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/textnorm"
)

const defaultCountry = "Portugal"


// Geocode resolves a structured address to coordinates. The full address is
// tried first; on an empty or unusable result set the house number and then
// the postal code are dropped before the street-only form is attempted.
// Confidence erodes by a fixed discount per relaxation step.
func (c *Client) Geocode(ctx context.Context, addr Address) (*Result, error) {
	if strings.TrimSpace(addr.Street) == "" {
		return nil, &InputError{Field: "street"}
	}
	if strings.TrimSpace(addr.City) == "" {
		return nil, &InputError{Field: "city"}
	}

	key := cacheKey(addr)
	if cached, ok := c.cache.Get(key); ok {
		res := cached.(Result)
		return &res, nil
	}

	attempts := buildAttempts(addr)
	for i, query := range attempts {
		results, err := c.search(ctx, query)
		if err != nil {
			return nil, err
		}

		best, score := pickBest(results, addr)
		if best == nil {
			zap.L().Debug("relaxing geocode query",
				zap.Int("attempt", i+1),
				zap.String("query", query),
			)
			continue
		}

		lat, lon, _ := best.coordinates()
		res := Result{
			Lat:        lat,
			Lon:        lon,
			Label:      best.DisplayName,
			Provider:   "nominatim",
			Confidence: confidence(score, i, c.attemptDiscount),
		}
		c.cache.SetDefault(key, res)
		return &res, nil
	}

	return nil, &NotFoundError{Query: attempts[0]}
}

// buildAttempts produces the relaxation ladder. City, district and country
// are kept on every attempt; the country defaults when absent.
func buildAttempts(addr Address) []string {
	country := collapse(addr.Country)
	if country == "" {
		country = defaultCountry
	}

	tail := joinParts(addr.City, addr.District, country)
	street := collapse(addr.Street)
	number := collapse(addr.HouseNumber)
	postal := collapse(addr.PostalCode)

	streetNumber := street
	if number != "" {
		streetNumber = street + " " + number
	}

	ladder := []string{
		joinParts(streetNumber, postal, tail),
		joinParts(streetNumber, tail),
		joinParts(street, postal, tail),
		joinParts(street, tail),
	}

	// Collapse duplicate steps so an address without a house number or
	// postal code does not re-issue the same query.
	out := ladder[:0]
	seen := make(map[string]bool, len(ladder))
	for _, q := range ladder {
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

func joinParts(parts ...string) string {
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := collapse(p); c != "" {
			fields = append(fields, c)
		}
	}
	return strings.Join(fields, ", ")
}

// pickBest scores every usable result and returns the highest scorer. Results
// without parseable coordinates or from the wrong country are skipped.
func pickBest(results []rawResult, addr Address) (*rawResult, float64) {
	var best *rawResult
	bestScore := 0.0

	for i := range results {
		r := &results[i]
		if _, _, ok := r.coordinates(); !ok {
			continue
		}
		if cc := r.Address.CountryCode; cc != "" && !strings.EqualFold(cc, "pt") {
			continue
		}

		s := scoreResult(r, addr)
		if best == nil || s > bestScore {
			best = r
			bestScore = s
		}
	}
	return best, bestScore
}

// scoreResult rates one Nominatim result against the requested address.
// Importance carries the base signal; loose containment of the requested
// components in the display name and structured address details add on top,
// and overly broad result types are penalized.
func scoreResult(r *rawResult, addr Address) float64 {
	score := 0.0
	if r.Importance != nil {
		score += clamp01(*r.Importance) * 0.6
	}

	display := textnorm.Normalize(r.DisplayName)
	if containsNormalized(display, addr.City) {
		score += 0.35
	}
	if containsNormalized(display, addr.PostalCode) {
		score += 0.25
	}
	if containsNormalized(display, addr.Street) {
		score += 0.25
	}
	if containsNormalized(display, addr.HouseNumber) {
		score += 0.10
	}

	if containsNormalized(textnorm.Normalize(r.Address.City), addr.City) ||
		containsNormalized(textnorm.Normalize(r.Address.Town), addr.City) ||
		containsNormalized(textnorm.Normalize(r.Address.Village), addr.City) {
		score += 0.30
	}
	if containsNormalized(textnorm.Normalize(r.Address.Postcode), addr.PostalCode) {
		score += 0.25
	}

	t := strings.ToLower(r.Type)
	if strings.Contains(t, "city") || strings.Contains(t, "administrative") {
		score -= 0.25
	}
	return score
}

// confidence maps the raw score to [0, 1], discounted per relaxation step.
func confidence(score float64, attemptIndex int, discount float64) float64 {
	conf := clamp01(score / 1.1)
	conf -= discount * float64(attemptIndex)
	if conf < 0 {
		conf = 0
	}
	return conf
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsNormalized(haystack, needle string) bool {
	n := textnorm.Normalize(needle)
	if n == "" {
		return false
	}
	return strings.Contains(haystack, n)
}
