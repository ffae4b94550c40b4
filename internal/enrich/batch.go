package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// Run executes one batch enrichment pass: every eligible POI with at least
// one gap is enriched concurrently, bounded by the worker limit. POIs
// outside the eligibility window are counted as processed but skipped.
func (o *Orchestrator) Run(ctx context.Context) (*model.EnrichmentRun, error) {
	run, err := o.PrepareRun(ctx)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, run)
}

// PrepareRun persists a fresh run record so its progress is observable while
// the pass executes, possibly in the background.
func (o *Orchestrator) PrepareRun(ctx context.Context) (*model.EnrichmentRun, error) {
	run := &model.EnrichmentRun{
		ID:        uuid.NewString(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "enrich: create run record")
	}
	return run, nil
}

// Execute performs the batch pass for a prepared run.
func (o *Orchestrator) Execute(ctx context.Context, run *model.EnrichmentRun) (*model.EnrichmentRun, error) {
	regions, err := o.store.AllRegions(ctx)
	if err != nil {
		return o.failRun(ctx, run, eris.Wrap(err, "enrich: load regions"))
	}
	pois, err := o.store.FindNeedingEnrichment(ctx, o.batchLimit)
	if err != nil {
		return o.failRun(ctx, run, eris.Wrap(err, "enrich: list pois"))
	}

	zap.L().Info("starting enrichment run",
		zap.String("run_id", run.ID),
		zap.Int("pois", len(pois)),
		zap.Int("workers", o.workers),
	)

	var processed, enriched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i := range pois {
		poi := &pois[i]
		g.Go(func() error {
			processed.Add(1)

			if poi.HasCoordinates() && !o.bounds.Contains(*poi.Lat, *poi.Lon) {
				zap.L().Debug("skipping poi outside mainland window",
					zap.Int64("poi_id", poi.ID))
				return nil
			}

			if !o.EnrichOne(gctx, poi, regions) {
				return nil
			}
			if err := o.store.SavePoi(gctx, poi); err != nil {
				return eris.Wrapf(err, "enrich: save poi %d", poi.ID)
			}
			enriched.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		run.Processed = int(processed.Load())
		run.Enriched = int(enriched.Load())
		return o.failRun(ctx, run, err)
	}

	run.Processed = int(processed.Load())
	run.Enriched = int(enriched.Load())
	run.Status = model.RunStatusComplete
	now := time.Now().UTC()
	run.FinishedAt = &now

	if err := o.store.FinishRun(ctx, run); err != nil {
		return nil, eris.Wrap(err, "enrich: finish run record")
	}

	zap.L().Info("enrichment run complete",
		zap.String("run_id", run.ID),
		zap.Int("processed", run.Processed),
		zap.Int("enriched", run.Enriched),
	)
	return run, nil
}

func (o *Orchestrator) failRun(ctx context.Context, run *model.EnrichmentRun, cause error) (*model.EnrichmentRun, error) {
	run.Status = model.RunStatusFailed
	now := time.Now().UTC()
	run.FinishedAt = &now

	if err := o.store.FinishRun(ctx, run); err != nil {
		zap.L().Error("failed to record run failure",
			zap.String("run_id", run.ID), zap.Error(err))
	}
	return run, cause
}
