package enrich

import (
	"fmt"
	"strconv"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// ReferentialError reports an operation against an entity that does not
// exist or is not eligible for enrichment. It maps to a client error at the
// API boundary rather than an upstream failure.
type ReferentialError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ReferentialError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("enrich: %s %s: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("enrich: %s %s not found", e.Entity, e.ID)
}

// ValidateRegionRef checks that a POI's region reference, when set, resolves
// against the known region set. A dangling reference means the caller handed
// in stale data and must not be papered over by enrichment.
func ValidateRegionRef(poi *model.Poi, regions []model.Region) error {
	if poi.RegionID == nil {
		return nil
	}
	for _, r := range regions {
		if r.ID == *poi.RegionID {
			return nil
		}
	}
	return &ReferentialError{
		Entity: "region",
		ID:     strconv.FormatInt(*poi.RegionID, 10),
		Reason: fmt.Sprintf("referenced by poi %d but unknown", poi.ID),
	}
}
