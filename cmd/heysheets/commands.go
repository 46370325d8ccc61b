package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/duaneharrison1/heysheetsmvp-sub003/internal/config"
)

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the sheet cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush <store-id> <tab>",
	Short: "Invalidate cached rows for one store tab",
	Long: `Invalidate cached rows for one store tab.

Use this after editing the spreadsheet directly so the widget stops
serving stale rows.

Examples:
  heysheets cache flush store-abc123 Services
  heysheets cache flush store-abc123 Hours`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		storeID, tab := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"storeId": storeID, "tabName": tab}
		resp, err := client.post(cmd.Context(), "/api/admin/cache/invalidate", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Invalidated %s / %s", storeID, tab)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheFlushCmd)
}

// --- requests ---

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List recent pipeline request traces",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/admin/debug/requests")
		if err != nil {
			return err
		}

		if asJSON {
			var records any
			if err := decodeJSON(resp, &records); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		var records []struct {
			ID         string `json:"id"`
			StoreID    string `json:"store_id"`
			Path       string `json:"path"`
			Message    string `json:"message"`
			Function   string `json:"function"`
			Status     string `json:"status"`
			StartedAt  string `json:"started_at"`
			DurationMs int64  `json:"duration_ms"`
		}
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No requests recorded.")
			return nil
		}

		// Snapshot is newest first.
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}

		for _, r := range records {
			function := r.Function
			if function == "" {
				function = "-"
			}
			msg := r.Message
			if len(msg) > 80 {
				msg = msg[:80] + "..."
			}
			fmt.Printf("%s  %s  %s  %s  %dms  %s\n",
				colorize(colorCyan, r.ID[:8]),
				r.StartedAt,
				r.Status,
				function,
				r.DurationMs,
				msg,
			)
		}
		return nil
	},
}

func init() {
	requestsCmd.Flags().Int("limit", 20, "maximum number of traces to list")
	requestsCmd.Flags().Bool("json", false, "print full traces as JSON")
}

// --- tab ---

var tabCmd = &cobra.Command{
	Use:   "tab <store-id> <name>",
	Short: "Read a sheet tab through the gateway",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/admin/tabs/" + url.PathEscape(args[0]) + "/" + url.PathEscape(args[1])
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var result struct {
			StoreID string              `json:"storeId"`
			Tab     string              `json:"tab"`
			Rows    []map[string]string `json:"rows"`
			Count   int                 `json:"count"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Rows); err != nil {
			return err
		}

		printStatus("Rows", "%d", result.Count)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
