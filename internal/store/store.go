// Package store persists POIs, regions and enrichment runs behind a single
// interface with SQLite and PostgreSQL implementations.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// NotFoundError reports a lookup for an entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s %s not found", e.Entity, e.ID)
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// POIs
	GetPoi(ctx context.Context, id int64) (*model.Poi, error)
	SavePoi(ctx context.Context, poi *model.Poi) error
	FindNeedingEnrichment(ctx context.Context, limit int) ([]model.Poi, error)
	UpsertFromOSM(ctx context.Context, pois []model.Poi) (int64, error)

	// Regions
	AllRegions(ctx context.Context) ([]model.Region, error)
	GetRegion(ctx context.Context, id int64) (*model.Region, error)
	UpsertRegion(ctx context.Context, region *model.Region) error

	// Runs
	CreateRun(ctx context.Context, run *model.EnrichmentRun) error
	FinishRun(ctx context.Context, run *model.EnrichmentRun) error
	GetRun(ctx context.Context, id string) (*model.EnrichmentRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver. SQLite is the default for
// single-machine use; PostgreSQL serves shared deployments.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
