package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"xeroreports/internal/reports"
	"xeroreports/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	downloadTenantID    string
	downloadPeriod      string
	downloadFindUnfiled bool
	downloadMonth       int
	downloadYear        int
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a single report for one organisation.",
}

// tenantArg returns the --tenant-id flag and the organisation name given as arguments.
func tenantArg(args []string) (string, string) {
	if len(args) == 0 {
		return downloadTenantID, ""
	}
	return downloadTenantID, strings.Join(args, " ")
}

func printResult(res reports.Result) {
	t := newTable()
	t.AppendRows([]table.Row{
		{"Report", res.Report},
		{"Organisation", res.Tenant},
		{"Period", res.Period},
		{"File", res.FileName},
		{"Size", res.FileSize},
		{"Valid", res.Valid},
	})
	t.Render()
}

var downloadActivityCmd = &cobra.Command{
	Use:   "activity [organisation name]",
	Short: "Download the Activity Statement.",
	Run: func(cmd *cobra.Command, args []string) {
		id, name := tenantArg(args)
		var res reports.Result
		err := client.do(context.Background(), http.MethodPost, "/api/reports/activity-statement", service.ActivityStatementRequest{
			TenantID:    id,
			TenantName:  name,
			Period:      downloadPeriod,
			FindUnfiled: &downloadFindUnfiled,
		}, &res)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

var downloadPayrollCmd = &cobra.Command{
	Use:   "payroll [organisation name]",
	Short: "Download the Payroll Activity Summary.",
	Run: func(cmd *cobra.Command, args []string) {
		id, name := tenantArg(args)
		var res reports.Result
		err := client.do(context.Background(), http.MethodPost, "/api/reports/payroll-activity-summary", service.PayrollRequest{
			TenantID:   id,
			TenantName: name,
			Month:      downloadMonth,
			Year:       downloadYear,
		}, &res)
		if err != nil {
			fatal(err)
		}
		printResult(res)
	},
}

var batchKinds []string

var batchCmd = &cobra.Command{
	Use:   "batch [tenant id...]",
	Short: "Download reports for several clients, all active clients when none are given.",
	Run: func(cmd *cobra.Command, args []string) {
		req := service.BatchRequest{TenantIDs: args}
		for _, raw := range batchKinds {
			kind, ok := reports.ParseKind(raw)
			if !ok {
				fatal(fmt.Errorf("unknown report %q, expected one of %v", raw, reports.Kinds))
			}
			req.Reports = append(req.Reports, kind)
		}

		var res service.BatchResult
		err := client.do(context.Background(), http.MethodPost, "/api/reports/batch", req, &res)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.SetTitle(fmt.Sprintf("batch %s: %d/%d completed, %d failed", res.BatchID, res.Completed, res.Total, res.Failed))
		t.AppendHeader(table.Row{"Organisation", "Report", "Status", "File / Error"})
		for _, item := range res.Results {
			detail := item.FileName
			if item.Status != service.ITEM_SUCCESS {
				detail = fmt.Sprintf("%s: %s", item.ErrorKind, item.Error)
			}
			t.AppendRow(table.Row{item.TenantName, item.Report, item.Status, detail})
		}
		t.Render()
	},
}

func init() {
	now := time.Now()

	downloadCmd.PersistentFlags().StringVar(&downloadTenantID, "tenant-id", "", "Tenant id of a saved client.")
	downloadActivityCmd.Flags().StringVar(&downloadPeriod, "period", "", "Period label, for example \"October 2024\".")
	downloadActivityCmd.Flags().BoolVar(&downloadFindUnfiled, "find-unfiled", true, "Open the first draft statement, --find-unfiled=false to skip.")
	downloadPayrollCmd.Flags().IntVar(&downloadMonth, "month", int(now.Month()), "Month (1-12).")
	downloadPayrollCmd.Flags().IntVar(&downloadYear, "year", now.Year(), "Year.")
	batchCmd.Flags().StringSliceVar(&batchKinds, "reports", nil, "Reports to download, defaults to all.")

	downloadCmd.AddCommand(downloadActivityCmd)
	downloadCmd.AddCommand(downloadPayrollCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(batchCmd)
}
