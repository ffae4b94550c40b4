package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/enrich"
	"github.com/roteiro-pt/enrich-cli/internal/poitype"
	"github.com/roteiro-pt/enrich-cli/internal/store"
	"github.com/roteiro-pt/enrich-cli/pkg/registry"
	"github.com/roteiro-pt/enrich-cli/pkg/wiki"
)

// env bundles the wired store and orchestrator shared by the enrich and
// serve commands.
type env struct {
	Store        store.Store
	Orchestrator *enrich.Orchestrator
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("closing store", zap.Error(err))
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return s, nil
}

// initEnrichment wires the external sources and the orchestrator on top of
// an open store.
func initEnrichment(ctx context.Context) (*env, error) {
	s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	registryClient := registry.NewClient(
		registry.WithBaseURL(cfg.Registry.BaseURL),
		registry.WithTypeName(cfg.Registry.TypeName),
	)
	wikiClient := wiki.NewClient(
		wiki.WithAPIURL(cfg.Wiki.APIURL),
		wiki.WithPageURL(cfg.Wiki.PageURL),
		wiki.WithMaxDistanceKm(cfg.Enrich.MaxDistanceKm),
		wiki.WithCacheTTL(time.Duration(cfg.Wiki.CacheTTLHours)*time.Hour),
	)

	opts := []enrich.Option{
		enrich.WithWorkers(cfg.Enrich.Workers),
		enrich.WithBatchLimit(cfg.Enrich.BatchLimit),
		enrich.WithMaxDistanceKm(cfg.Enrich.MaxDistanceKm),
		enrich.WithBounds(enrich.Bounds{
			MinLat: cfg.Enrich.Bounds.MinLat,
			MaxLat: cfg.Enrich.Bounds.MaxLat,
			MinLon: cfg.Enrich.Bounds.MinLon,
			MaxLon: cfg.Enrich.Bounds.MaxLon,
		}),
	}
	if cfg.Enrich.KeywordsFile != "" {
		groups, err := poitype.LoadKeywordGroups(cfg.Enrich.KeywordsFile)
		if err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, enrich.WithClassifier(
			poitype.NewClassifier(poitype.WithKeywordGroups(groups))))
	}

	return &env{
		Store:        s,
		Orchestrator: enrich.NewOrchestrator(s, registryClient, wikiClient, opts...),
	}, nil
}
