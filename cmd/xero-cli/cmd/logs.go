package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"xeroreports/internal/audit"
	"xeroreports/internal/reports"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	logsStatus  string
	logsLimit   int
	logsBatchID string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent download attempts.",
	Run: func(cmd *cobra.Command, args []string) {
		query := url.Values{}
		if logsBatchID != "" {
			query.Set("batch_id", logsBatchID)
		}
		if logsStatus != "" {
			query.Set("status", logsStatus)
		}
		if logsLimit > 0 {
			query.Set("limit", strconv.Itoa(logsLimit))
		}

		var res struct {
			Logs []audit.Entry `json:"logs"`
		}
		err := client.do(context.Background(), http.MethodGet, "/api/reports/logs?"+query.Encode(), nil, &res)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Started", "Organisation", "Report", "Status", "File / Error"})
		for _, e := range res.Logs {
			detail := e.FileName
			if e.ErrorKind != "" {
				detail = fmt.Sprintf("%s: %s", e.ErrorKind, e.ErrorMessage)
			}
			t.AppendRow(table.Row{
				e.ID,
				e.StartedAt.Local().Format("2006-01-02 15:04:05"),
				e.TenantName,
				e.ReportType,
				e.Status,
				detail,
			})
		}
		t.Render()
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List and fetch downloaded report files.",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded files, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		var res struct {
			Files []reports.FileInfo `json:"files"`
		}
		err := client.do(context.Background(), http.MethodGet, "/api/reports/files", nil, &res)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"File", "Size", "Modified"})
		for _, f := range res.Files {
			t.AppendRow(table.Row{f.Name, f.Size, f.ModifiedAt.Local().Format("2006-01-02 15:04")})
		}
		t.Render()
	},
}

var filesOutDir string

var filesGetCmd = &cobra.Command{
	Use:   "get <filename>",
	Short: "Fetch a downloaded file from the server.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out := filepath.Join(filesOutDir, filepath.Base(args[0]))
		res, err := client.http.R().
			SetContext(context.Background()).
			SetOutput(out).
			Get("/api/reports/download/" + url.PathEscape(args[0]))
		if err != nil {
			fatal(err)
		}
		if res.IsError() {
			fatal(fmt.Errorf("server responded %s", res.Status()))
		}
		fmt.Println("saved", out)
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsStatus, "status", "", "Only show attempts with this status (pending, success, failed).")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum number of entries.")
	logsCmd.Flags().StringVar(&logsBatchID, "batch", "", "Only show the attempts of one batch.")
	filesGetCmd.Flags().StringVarP(&filesOutDir, "out", "o", ".", "Directory to save into.")

	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesGetCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(filesCmd)
}
