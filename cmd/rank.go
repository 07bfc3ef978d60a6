package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/core/model"
)

var (
	rankLat, rankLon float64
	rankStatus       string
	rankMax          int
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank units by distance to a location",
	RunE:  runRank,
}

func init() {
	f := rankCmd.Flags()
	f.Float64Var(&rankLat, "lat", 0, "target latitude")
	f.Float64Var(&rankLon, "lon", 0, "target longitude")
	f.StringVar(&rankStatus, "status", "", "status filter (default from config, \"all\" disables)")
	f.IntVar(&rankMax, "max", 0, "maximum results (0 means all)")
	rootCmd.AddCommand(rankCmd)
}

// target resolves --lat/--lon, falling back to the configured default center
// when GPS auto-detect is off.
func target(cmd *cobra.Command, svc *app.Service, lat, lon float64) (model.Coordinate, error) {
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		return model.NewCoordinate(lat, lon)
	}
	if c := svc.DefaultCenter(); c != nil {
		return *c, nil
	}
	return model.Coordinate{}, fmt.Errorf("%w: --lat and --lon are required", model.ErrInvalidRequest)
}

func runRank(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		at, err := target(cmd, svc, rankLat, rankLon)
		if err != nil {
			return err
		}
		status := svc.Config.Dispatch.StatusFilter
		if rankStatus != "" {
			status = rankStatus
		}
		if status == "all" {
			status = ""
		}
		ranked, err := svc.Manager.RankUnits(ctx, at, status, rankMax)
		if err != nil {
			return err
		}

		table := uitable.New()
		table.AddRow("#", "UNIT", "NAME", "STATUS", "DRIVER", "DISTANCE", "ETA")
		for i, u := range ranked {
			dist := fmt.Sprintf("%.2f km", u.EffectiveDistanceKm())
			table.AddRow(i+1, u.UnitID, u.Name, u.Status, u.Driver, dist, formatETA(u))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
		return err
	})
}
