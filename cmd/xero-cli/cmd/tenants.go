package cmd

import (
	"context"
	"fmt"
	"net/http"
	"xeroreports/internal/auth"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List and switch Xero organisations.",
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the organisations available to the logged in user.",
	Run: func(cmd *cobra.Command, args []string) {
		var res struct {
			Tenants []auth.Tenant `json:"tenants"`
		}
		err := client.do(context.Background(), http.MethodGet, "/api/auth/tenants", nil, &res)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Organisation", "Current"})
		for _, tenant := range res.Tenants {
			current := ""
			if tenant.Current {
				current = "*"
			}
			t.AppendRow(table.Row{tenant.Name, current})
		}
		t.Render()
	},
}

var switchShortcode string

var tenantsSwitchCmd = &cobra.Command{
	Use:   "switch <organisation name>",
	Short: "Switch the browser to another organisation.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var res struct {
			Tenant string `json:"tenant"`
		}
		err := client.do(context.Background(), http.MethodPost, "/api/auth/switch-tenant", map[string]string{
			"tenant_name":      args[0],
			"tenant_shortcode": switchShortcode,
		}, &res)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("switched to %q\n", res.Tenant)
	},
}

func init() {
	tenantsSwitchCmd.Flags().StringVar(&switchShortcode, "shortcode", "", "Organisation shortcode, switches by url when set.")

	tenantsCmd.AddCommand(tenantsListCmd)
	tenantsCmd.AddCommand(tenantsSwitchCmd)
	rootCmd.AddCommand(tenantsCmd)
}
