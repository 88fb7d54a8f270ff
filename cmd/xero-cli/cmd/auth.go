package cmd

import (
	"context"
	"fmt"
	"net/http"
	"xeroreports/internal/auth"
	"xeroreports/internal/browser"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Xero login session.",
}

var authSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Open the Xero login page in the server's browser.",
	Run: func(cmd *cobra.Command, args []string) {
		var res auth.SetupResult
		err := client.do(context.Background(), http.MethodPost, "/api/auth/setup", nil, &res)
		if err != nil {
			fatal(err)
		}
		fmt.Println("state:", res.State)
		fmt.Println("login url:", res.LoginURL)
		fmt.Println()
		fmt.Println(res.Instructions)
	},
}

var authCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Capture the session after logging in manually.",
	Run: func(cmd *cobra.Command, args []string) {
		var res auth.CompleteResult
		err := client.do(context.Background(), http.MethodPost, "/api/auth/complete", nil, &res)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("logged in to %q (%d cookies saved)\n", res.Tenant, res.CookieCount)
	},
}

var authRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the saved session into the browser.",
	Run: func(cmd *cobra.Command, args []string) {
		var res auth.RestoreResult
		err := client.do(context.Background(), http.MethodPost, "/api/auth/restore", nil, &res)
		if err != nil {
			fatal(err)
		}
		if !res.LoggedIn {
			fmt.Println("session could not be restored:", res.Reason)
			if res.Screenshot != "" {
				fmt.Println("screenshot:", res.Screenshot)
			}
			fmt.Println("run `xero-cli auth setup` to log in again.")
			return
		}
		fmt.Printf("session restored, current tenant %q\n", res.Tenant)
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the authentication, session and browser state.",
	Run: func(cmd *cobra.Command, args []string) {
		var res auth.StatusResult
		err := client.do(context.Background(), http.MethodGet, "/api/auth/status", nil, &res)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendRows([]table.Row{
			{"State", res.State},
			{"Tenant", res.Tenant},
			{"Saved session", res.Session.HasSession},
			{"Session valid", res.Session.IsValid},
			{"Cookies", res.Session.CookieCount},
		})
		if res.Session.ExpiresAt != nil {
			t.AppendRow(table.Row{"Expires", res.Session.ExpiresAt.Local().Format("2006-01-02 15:04")})
		}
		t.AppendRow(table.Row{"Browser", browserSummary(res.Browser)})
		t.Render()
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the browser session and the saved session.",
	Run: func(cmd *cobra.Command, args []string) {
		err := client.do(context.Background(), http.MethodPost, "/api/auth/logout", nil, nil)
		if err != nil {
			fatal(err)
		}
		fmt.Println("logged out")
	},
}

func browserSummary(state browser.State) string {
	switch {
	case !state.Initialized:
		return "stopped"
	case state.Headless:
		return "running (headless)"
	default:
		return "running (headed)"
	}
}

func init() {
	authCmd.AddCommand(authSetupCmd)
	authCmd.AddCommand(authCompleteCmd)
	authCmd.AddCommand(authRestoreCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
