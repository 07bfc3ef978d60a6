package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/model"
)

var dispatchReq dispatch.Request

var (
	dispatchLat, dispatchLon float64
	dispatchTimeout          time.Duration
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Submit an emergency request and assign the nearest unit",
	RunE:  runDispatch,
}

func init() {
	f := dispatchCmd.Flags()
	f.StringVar(&dispatchReq.PatientName, "name", "", "patient name")
	f.IntVar(&dispatchReq.Age, "age", 0, "patient age")
	f.StringVar(&dispatchReq.EmergencyType, "type", "Other", "emergency type (Heart Attack, Accident, Stroke, Breathing Problem, Other)")
	f.StringVar(&dispatchReq.Severity, "severity", string(dispatch.DefaultSeverity), "Low, Medium, High or Critical")
	f.StringVar(&dispatchReq.Phone, "phone", "", "contact phone")
	f.StringVar(&dispatchReq.Address, "address", "", "free-text incident address")
	f.Float64Var(&dispatchLat, "lat", 0, "incident latitude")
	f.Float64Var(&dispatchLon, "lon", 0, "incident longitude")
	f.DurationVar(&dispatchTimeout, "timeout", 30*time.Second, "overall deadline")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, _ []string) error {
	req := dispatchReq
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		c, err := model.NewCoordinate(dispatchLat, dispatchLon)
		if err != nil {
			return err
		}
		req.Location = &c
	}
	if req.Location == nil && req.Address == "" {
		return errors.New("dispatch needs --address or --lat/--lon")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), dispatchTimeout)
	defer cancel()
	return withService(ctx, func(svc *app.Service) error {
		out, err := svc.Manager.Dispatch(ctx, req)
		if perr := printOutcome(cmd, out); perr != nil {
			return perr
		}
		return err
	})
}

func printOutcome(cmd *cobra.Command, out dispatch.Outcome) error {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("DISPATCH:", out.DispatchID)
	if out.Request != nil {
		table.AddRow("REQUEST:", out.Request.ID)
		table.AddRow("LOCATION:", out.Request.Location.String())
		if out.Request.ResolvedAddress != "" {
			table.AddRow("ADDRESS:", out.Request.ResolvedAddress)
		}
	}
	if unit, ok := out.Assigned(); ok {
		table.AddRow("UNIT:", fmt.Sprintf("%s (%s)", unit.Name, unit.UnitID))
		table.AddRow("ETA:", formatETA(unit))
	}
	if out.CoverageKnown {
		table.AddRow("ELIGIBLE UNITS:", out.EligibleUnits)
	}
	if out.Escalation != "" {
		table.AddRow("CALL:", out.Escalation)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), table)
	return err
}

func formatETA(u model.RankedUnit) string {
	if u.ETAMinutes == nil {
		return "-"
	}
	s := fmt.Sprintf("%.1f min", *u.ETAMinutes)
	if u.RouteFallback {
		s += " (estimate)"
	}
	return s
}
