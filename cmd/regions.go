package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/geo"
)

var (
	regionsCSVPath   string
	regionsShpPath   string
	regionsNameField string
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Bootstrap the district table",
	Long:  "Loads districts from a CSV file and optionally fills missing centroids from a shapefile. POIs are assigned to the district with the nearest centroid during enrichment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("regions"); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if regionsCSVPath != "" {
			n, err := geo.ImportRegionCSV(ctx, s, regionsCSVPath)
			if err != nil {
				return err
			}
			zap.L().Info("regions loaded from csv",
				zap.String("path", regionsCSVPath), zap.Int("count", n))
			cmd.Printf("loaded %d regions from %s\n", n, regionsCSVPath)
		}

		if regionsShpPath != "" {
			n, err := geo.ImportRegionShapefile(ctx, s, regionsShpPath, regionsNameField)
			if err != nil {
				return err
			}
			zap.L().Info("centroids filled from shapefile",
				zap.String("path", regionsShpPath), zap.Int("count", n))
			cmd.Printf("filled %d centroids from %s\n", n, regionsShpPath)
		}

		return nil
	},
}

func init() {
	regionsCmd.Flags().StringVar(&regionsCSVPath, "csv", "", "district CSV file")
	regionsCmd.Flags().StringVar(&regionsShpPath, "shapefile", "", "district boundary shapefile for centroid backfill")
	regionsCmd.Flags().StringVar(&regionsNameField, "name-field", "name", "shapefile attribute holding the district name")
	regionsCmd.MarkFlagsOneRequired("csv", "shapefile")
	rootCmd.AddCommand(regionsCmd)
}
