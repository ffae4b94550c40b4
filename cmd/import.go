package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/model"
	"github.com/roteiro-pt/enrich-cli/internal/store"
	"github.com/roteiro-pt/enrich-cli/pkg/overpass"
)

var importGroups []string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import points of interest from OpenStreetMap",
	Long:  "Pulls named points of interest over the mainland bounding box through the Overpass API and upserts them keyed by OSM id. Re-imports refresh names and coordinates without touching enriched fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		client := overpass.NewClient(overpass.WithBaseURL(cfg.Overpass.BaseURL))

		var total int64
		for _, group := range importGroups {
			n, err := importGroup(ctx, s, client, group)
			if err != nil {
				return err
			}
			total += n
		}
		cmd.Printf("imported %d points of interest\n", total)
		return nil
	},
}

func importGroup(ctx context.Context, s store.Store, client *overpass.Client, group string) (int64, error) {
	var query string
	switch group {
	case "cultural":
		query = client.BuildCulturalQuery()
	case "church":
		query = client.BuildChurchQuery()
	case "nature":
		query = client.BuildNatureQuery()
	default:
		return 0, eris.Errorf("unknown import group %q", group)
	}

	elements, err := client.Run(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "overpass query for %s", group)
	}

	pois := make([]model.Poi, 0, len(elements))
	for _, e := range elements {
		name := e.Name()
		if name == "" {
			continue
		}
		poi := model.Poi{
			Name:          e.Tags["name"],
			NamePT:        e.Tags["name:pt"],
			Category:      e.Category(),
			ExternalOSMID: e.OSMID(),
			Source:        model.SourceOSM,
		}
		if poi.Name == "" {
			poi.Name = name
		}
		if lat, lon, ok := e.Coordinates(); ok {
			poi.Lat = &lat
			poi.Lon = &lon
		}
		pois = append(pois, poi)
	}

	n, err := s.UpsertFromOSM(ctx, pois)
	if err != nil {
		return 0, eris.Wrapf(err, "upsert %s group", group)
	}
	zap.L().Info("import group complete",
		zap.String("group", group),
		zap.Int("elements", len(elements)),
		zap.Int64("upserted", n),
	)
	return n, nil
}

func init() {
	importCmd.Flags().StringSliceVar(&importGroups, "groups", []string{"cultural", "church", "nature"},
		"themed query groups to import (cultural, church, nature)")
	rootCmd.AddCommand(importCmd)
}
