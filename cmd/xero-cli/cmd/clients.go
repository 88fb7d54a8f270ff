package cmd

import (
	"context"
	"fmt"
	"net/http"
	"xeroreports/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage the saved client organisations.",
}

var clientsActiveOnly bool

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved clients.",
	Run: func(cmd *cobra.Command, args []string) {
		path := "/api/clients"
		if clientsActiveOnly {
			path += "?active_only=true"
		}
		var res struct {
			Clients []service.Client `json:"clients"`
		}
		err := client.do(context.Background(), http.MethodGet, path, nil, &res)
		if err != nil {
			fatal(err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Tenant ID", "Name", "Shortcode", "Active"})
		for _, c := range res.Clients {
			t.AppendRow(table.Row{c.ID, c.TenantID, c.TenantName, c.TenantShortcode, c.IsActive})
		}
		t.Render()
	},
}

var (
	addShortcode string
	addFolder    string
)

var clientsAddCmd = &cobra.Command{
	Use:   "add <tenant id> <organisation name>",
	Short: "Save a client organisation.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var created service.Client
		err := client.do(context.Background(), http.MethodPost, "/api/clients", service.ClientInput{
			TenantID:        args[0],
			TenantName:      args[1],
			TenantShortcode: addShortcode,
			OnedriveFolder:  addFolder,
		}, &created)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("added client %d (%s)\n", created.ID, created.TenantName)
	},
}

var clientsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Deactivate a saved client.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := client.do(context.Background(), http.MethodDelete, "/api/clients/"+args[0], nil, nil)
		if err != nil {
			fatal(err)
		}
		fmt.Println("client deactivated")
	},
}

func init() {
	clientsListCmd.Flags().BoolVar(&clientsActiveOnly, "active", false, "Only list active clients.")
	clientsAddCmd.Flags().StringVar(&addShortcode, "shortcode", "", "Xero organisation shortcode.")
	clientsAddCmd.Flags().StringVar(&addFolder, "folder", "", "OneDrive folder reports are filed under.")

	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsAddCmd)
	clientsCmd.AddCommand(clientsRemoveCmd)
	rootCmd.AddCommand(clientsCmd)
}
