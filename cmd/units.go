package cmd

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
)

var unitsStatus string

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Unit related commands",
}

var unitsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List units from the record store",
	RunE:  runUnitsLs,
}

func init() {
	unitsLsCmd.Flags().StringVar(&unitsStatus, "status", "", "only units with this status")
	unitsCmd.AddCommand(unitsLsCmd)
	rootCmd.AddCommand(unitsCmd)
}

func runUnitsLs(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		units, err := svc.Manager.Units(ctx)
		if err != nil {
			return err
		}
		table := uitable.New()
		table.AddRow("ID", "NAME", "STATUS", "DRIVER", "LOCATION")
		for _, u := range units {
			if !u.MatchesStatus(unitsStatus) {
				continue
			}
			loc := "-"
			if u.Location != nil {
				loc = u.Location.String()
			}
			table.AddRow(u.ID, u.Name, u.Status, u.Driver, loc)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), table)
		return err
	})
}
