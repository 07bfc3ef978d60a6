package cmd

import (
	"errors"
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/core/landmarks"
)

var (
	lmLat, lmLon float64
	lmRadius     float64
	lmCategory   string
	lmMax        int
)

var landmarksCmd = &cobra.Command{
	Use:   "landmarks",
	Short: "Find points of interest (hospitals by default) near a location",
	RunE:  runLandmarks,
}

func init() {
	f := landmarksCmd.Flags()
	f.Float64Var(&lmLat, "lat", 0, "center latitude")
	f.Float64Var(&lmLon, "lon", 0, "center longitude")
	f.Float64Var(&lmRadius, "radius", 0, "search radius in km (default from config)")
	f.StringVar(&lmCategory, "category", "", "amenity category (default from config)")
	f.IntVar(&lmMax, "max", 10, "maximum results (0 means all)")
	rootCmd.AddCommand(landmarksCmd)
}

func runLandmarks(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		if svc.Landmarks == nil {
			return errors.New("landmark search is disabled (features.landmarks_enabled)")
		}
		at, err := target(cmd, svc, lmLat, lmLon)
		if err != nil {
			return err
		}
		q := landmarks.Query{
			Center:     at,
			RadiusKm:   svc.Config.Landmarks.DefaultRadiusKm,
			Category:   svc.Config.Landmarks.DefaultCategory,
			MaxResults: lmMax,
		}
		if lmRadius > 0 {
			q.RadiusKm = lmRadius
		}
		if lmCategory != "" {
			q.Category = lmCategory
		}
		found, err := svc.Landmarks.Search(ctx, q)
		if err != nil {
			return err
		}

		table := uitable.New()
		table.MaxColWidth = 50
		table.AddRow("NAME", "DISTANCE", "LOCATION", "ADDRESS")
		for _, l := range found {
			table.AddRow(l.Name, fmt.Sprintf("%.2f km", l.DistanceKm), l.Location.String(), l.Address)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
		return err
	})
}
