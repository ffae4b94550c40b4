package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/roteiro-pt/enrich-cli/pkg/geocode"
)

var geocodeAddr geocode.Address

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve a structured address to coordinates",
	Long:  "Geocodes via Nominatim with progressive query relaxation: the house number and postal code are dropped step by step until a match is found, discounting confidence per step.",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newGeocodeClient().Geocode(cmd.Context(), geocodeAddr)
		if err != nil {
			return eris.Wrap(err, "geocode")
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		cmd.Println(string(out))
		return nil
	},
}

func newGeocodeClient() *geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithRateLimit(cfg.Geocode.RatePerSec),
		geocode.WithAttemptDiscount(cfg.Geocode.AttemptDiscount),
		geocode.WithCacheTTL(time.Duration(cfg.Geocode.CacheTTLHours)*time.Hour),
	)
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeAddr.Street, "street", "", "street name (required)")
	geocodeCmd.Flags().StringVar(&geocodeAddr.HouseNumber, "number", "", "house number")
	geocodeCmd.Flags().StringVar(&geocodeAddr.PostalCode, "postal-code", "", "postal code")
	geocodeCmd.Flags().StringVar(&geocodeAddr.City, "city", "", "city (required)")
	geocodeCmd.Flags().StringVar(&geocodeAddr.District, "district", "", "district")
	geocodeCmd.Flags().StringVar(&geocodeAddr.Country, "country", "", "country (default Portugal)")
	_ = geocodeCmd.MarkFlagRequired("street")
	_ = geocodeCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(geocodeCmd)
}
