package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/core/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <request-id> <status>",
	Short: "Move a request to In Progress or Completed",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	next, ok := model.ParseRequestStatus(args[1])
	if !ok {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidRequest, args[1])
	}
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		req, err := svc.Manager.UpdateStatus(ctx, args[0], next)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "request %s is now %s\n", req.ID, req.Status)
		return err
	})
}
