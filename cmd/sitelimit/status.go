package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fatih/color"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/spf13/cobra"
)

var statusDate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's usage from the running daemon",
	Long:  `Show the usage ledger for a day, busiest site first, with limits, remaining time and the current block set.`,
	Example: `  sitelimit status
  sitelimit status --date 2026-03-09`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDate, "date", "", "Ledger date (YYYY-MM-DD), defaults to today")
	rootCmd.AddCommand(statusCmd)
}

type blockedResponse struct {
	Domains []string `json:"domains"`
	Count   int      `json:"count"`
}

type categoryTotalsResponse struct {
	Date       string                `json:"date"`
	Categories []usage.CategoryTotal `json:"categories"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	path := "/api/v1/usage/today"
	if statusDate != "" {
		path = "/api/v1/usage/" + url.PathEscape(statusDate)
	}

	var report usage.DayReport
	if err := client.do(ctx, "GET", path, nil, &report); err != nil {
		return err
	}

	var blocked blockedResponse
	if err := client.do(ctx, "GET", "/api/v1/blocked", nil, &blocked); err != nil {
		return err
	}

	var totals categoryTotalsResponse
	if err := client.do(ctx, "GET", "/api/v1/categories/totals?date="+url.QueryEscape(report.Date), nil, &totals); err != nil {
		return err
	}

	printStatus(&report, blocked.Domains, totals.Categories)
	return nil
}

func printStatus(report *usage.DayReport, blocked []string, totals []usage.CategoryTotal) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	isBlocked := make(map[string]bool, len(blocked))
	for _, domain := range blocked {
		isBlocked[domain] = true
	}

	fmt.Println()
	cyan.Printf("USAGE FOR %s  (total %s)\n", report.Date, report.Formatted)
	fmt.Println()

	if len(report.Sites) == 0 {
		fmt.Println("No usage recorded.")
	}
	for _, site := range report.Sites {
		line := fmt.Sprintf("  %-32s %10s", site.DisplayName, site.Formatted)
		if site.LimitSeconds > 0 {
			line += fmt.Sprintf("  limit %s", usage.FormatLimit(site.LimitSeconds))
			if site.RemainingSeconds != nil {
				line += fmt.Sprintf(", %s left", usage.FormatDuration(*site.RemainingSeconds))
			}
		}
		switch {
		case isBlocked[site.Domain]:
			red.Println(line + "  BLOCKED")
		case site.RemainingSeconds != nil && *site.RemainingSeconds < 300:
			yellow.Println(line)
		default:
			fmt.Println(line)
		}
	}

	if len(totals) > 0 {
		fmt.Println()
		cyan.Println("BY CATEGORY")
		for _, total := range totals {
			if total.TotalSeconds == 0 {
				continue
			}
			fmt.Printf("  %-32s %10s\n", total.Category.Name, total.Formatted)
		}
	}
	fmt.Println()
}
