package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/sitelimit/internal/enforce"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/spf13/cobra"
)

var (
	limitCategory string
	limitName     string
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage per-site daily limits",
	Long:  `List, set and remove per-site daily limits on the running daemon.`,
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sites",
	Args:  cobra.NoArgs,
	RunE:  runLimitsList,
}

var limitsSetCmd = &cobra.Command{
	Use:   "set DOMAIN LIMIT",
	Short: "Set the daily limit of a site",
	Long: `Set the daily limit of a site. LIMIT is a duration such as 45m or 1h30m;
0 or "none" keeps the site's settings but removes its limit. A limit lowered
below today's usage blocks the site right away. Raising a limit does not lift a
block before the next reset.`,
	Example: `  sitelimit limits set reddit.com 30m
  sitelimit limits set github.com none --category cat-2`,
	Args: cobra.ExactArgs(2),
	RunE: runLimitsSet,
}

var limitsRemoveCmd = &cobra.Command{
	Use:     "rm DOMAIN",
	Aliases: []string{"remove"},
	Short:   "Remove the settings of a site",
	Args:    cobra.ExactArgs(1),
	RunE:    runLimitsRemove,
}

func init() {
	limitsSetCmd.Flags().StringVar(&limitCategory, "category", "", "Category id to file the site under")
	limitsSetCmd.Flags().StringVar(&limitName, "name", "", "Custom display name")

	limitsCmd.AddCommand(limitsListCmd, limitsSetCmd, limitsRemoveCmd)
	rootCmd.AddCommand(limitsCmd)
}

type limitsResponse struct {
	Limits []storage.SiteLimit `json:"limits"`
	Count  int                 `json:"count"`
}

type putLimitResponse struct {
	Limit  storage.SiteLimit `json:"limit"`
	Status enforce.Status    `json:"status"`
}

func runLimitsList(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var resp limitsResponse
	if err := client.do(context.Background(), "GET", "/api/v1/limits", nil, &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No sites configured.")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Printf("%-32s %-12s %s\n", "DOMAIN", "LIMIT", "CATEGORY")
	for _, limit := range resp.Limits {
		fmt.Printf("%-32s %-12s %s\n", limit.Domain, usage.FormatLimit(limit.DailyLimitSeconds), usage.CategoryFor(limit.Domain, &limit))
	}
	return nil
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	seconds, err := parseLimit(args[1])
	if err != nil {
		return err
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"daily_limit_seconds": seconds,
		"category_id":         limitCategory,
		"custom_name":         limitName,
	}
	var resp putLimitResponse
	if err := client.do(context.Background(), "PUT", "/api/v1/limits/"+url.PathEscape(args[0]), body, &resp); err != nil {
		return err
	}

	fmt.Printf("✅ %s: limit %s, used %s today\n", resp.Limit.Domain, usage.FormatLimit(resp.Limit.DailyLimitSeconds), usage.FormatDuration(resp.Status.UsedSeconds))
	if resp.Status.Blocked {
		color.New(color.FgRed, color.Bold).Printf("   %s is blocked until the next reset\n", resp.Limit.Domain)
	}
	return nil
}

func runLimitsRemove(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	if err := client.do(context.Background(), "DELETE", "/api/v1/limits/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}

	fmt.Printf("✅ Removed settings for %s\n", storage.NormalizeDomain(args[0]))
	return nil
}

// parseLimit turns a duration argument into whole seconds.
func parseLimit(value string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "none", "off":
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q: use a duration such as 45m or 1h30m, or none", value)
	}
	if d < time.Second {
		return 0, fmt.Errorf("invalid limit %q: must be at least one second", value)
	}
	return int64(d / time.Second), nil
}
