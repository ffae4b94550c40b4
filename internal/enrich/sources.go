package enrich

import (
	"context"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// RegistrySource provides heritage inventory candidates, by name or by a
// small window around a point.
type RegistrySource interface {
	SearchByName(ctx context.Context, name string) ([]model.Candidate, error)
	SearchByBbox(ctx context.Context, lat, lon float64) ([]model.Candidate, error)
}

// EncyclopediaSource resolves a named point to an article candidate. A nil
// candidate with a nil error means no acceptable article exists.
type EncyclopediaSource interface {
	Lookup(ctx context.Context, name string, lat, lon *float64) (*model.Candidate, error)
}

// Store is the persistence surface the orchestrator depends on.
type Store interface {
	AllRegions(ctx context.Context) ([]model.Region, error)
	FindNeedingEnrichment(ctx context.Context, limit int) ([]model.Poi, error)
	SavePoi(ctx context.Context, poi *model.Poi) error
	CreateRun(ctx context.Context, run *model.EnrichmentRun) error
	FinishRun(ctx context.Context, run *model.EnrichmentRun) error
}
