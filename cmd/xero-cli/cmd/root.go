package cmd

import (
	"fmt"
	"os"
	"strings"
	"xeroreports/internal/components/telemetry"
	libtelemetry "xeroreports/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const (
	ENV_SERVER     = "XERO_SERVER"
	DEFAULT_SERVER = "http://localhost:8000"
)

var (
	serverURL string
	verbose   bool
	client    apiClient
)

var rootCmd = &cobra.Command{
	Use:   "xero-cli",
	Short: "xero-cli drives a running xeroreports server: login, tenants, report downloads and clients.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(verbose)

		http := resty.New()
		http.SetBaseURL(strings.TrimSuffix(serverURL, "/"))
		http.SetHeader("content-type", "application/json")
		if verbose {
			telemetry.InstrumentResty(http, telemetry.SlogAPI{})
		}
		client = apiClient{http: http}
	},
}

func init() {
	server := os.Getenv(ENV_SERVER)
	if server == "" {
		server = DEFAULT_SERVER
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", server, "Base url of the xeroreports server.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request.")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
