package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/core/audit"
	"github.com/kilianp07/ambudispatch/pkg/export"
)

var (
	auditFormat         string
	auditSince          time.Duration
	auditUnit, auditReq string
	auditLimit          int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Export the dispatch audit trail",
	RunE:  runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFormat, "format", "csv", "output format: csv or json")
	f.DurationVar(&auditSince, "since", 0, "only records newer than this (0 means all)")
	f.StringVar(&auditUnit, "unit", "", "only records mentioning this unit id")
	f.StringVar(&auditReq, "request", "", "only records for this request id")
	f.IntVar(&auditLimit, "limit", 0, "keep the newest N records (0 means all)")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	if auditFormat != "csv" && auditFormat != "json" {
		return fmt.Errorf("unknown format %q", auditFormat)
	}
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		q := audit.LogQuery{UnitID: auditUnit, RequestID: auditReq, Limit: auditLimit}
		if auditSince > 0 {
			q.Start = time.Now().Add(-auditSince)
		}
		recs, err := svc.Audit.Query(ctx, q)
		if err != nil {
			return err
		}
		if auditFormat == "json" {
			return export.WriteJSON(cmd.OutOrStdout(), recs)
		}
		return export.WriteCSV(cmd.OutOrStdout(), recs)
	})
}
