package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/enrich"
	"github.com/roteiro-pt/enrich-cli/internal/model"
)

var enrichPoiID int64

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run an enrichment pass over the POI set",
	Long:  "Fills missing descriptions, article links, images and district assignments from the heritage inventory and Wikipedia. Without --poi-id a full batch pass runs over every POI with gaps.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnrichment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if enrichPoiID > 0 {
			return enrichSingle(cmd, env)
		}

		run, err := env.Orchestrator.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "enrichment run")
		}
		cmd.Printf("run %s: %d processed, %d enriched\n", run.ID, run.Processed, run.Enriched)
		return nil
	},
}

func enrichSingle(cmd *cobra.Command, env *env) error {
	ctx := cmd.Context()

	poi, err := env.Store.GetPoi(ctx, enrichPoiID)
	if err != nil {
		return err
	}
	regions, err := env.Store.AllRegions(ctx)
	if err != nil {
		return err
	}
	if err := enrich.ValidateRegionRef(poi, regions); err != nil {
		return err
	}

	if !env.Orchestrator.EnrichOne(ctx, poi, regions) {
		cmd.Printf("poi %d: nothing to enrich\n", poi.ID)
		return nil
	}
	if err := env.Store.SavePoi(ctx, poi); err != nil {
		return err
	}

	zap.L().Info("poi enriched",
		zap.Int64("poi_id", poi.ID),
		zap.String("name", poi.DisplayName()),
		zap.Bool("placeholder", poi.Description == model.PlaceholderDescription),
	)
	cmd.Printf("poi %d enriched\n", poi.ID)
	return nil
}

func init() {
	enrichCmd.Flags().Int64Var(&enrichPoiID, "poi-id", 0, "enrich a single POI instead of running a batch")
	rootCmd.AddCommand(enrichCmd)
}
