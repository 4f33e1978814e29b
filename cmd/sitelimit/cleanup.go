package main

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/spf13/cobra"
)

var (
	cleanupDays   int
	cleanupDryRun bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old days from the usage ledger",
	Long: `Delete usage ledger days older than the retention window. The daemon does
this on its own schedule; this command is for one-off pruning while the daemon
is stopped.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Days to keep (default: retention.usage_days)")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "List the days that would be deleted")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	days := cfg.Retention.UsageDays
	if cmd.Flags().Changed("days") {
		days = cleanupDays
	}
	if days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", days)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	pruner := usage.NewPruner(store.Usage(), days, quartz.NewReal(), quietLogger())

	if cleanupDryRun {
		dates, err := store.Usage().ListDates(ctx)
		if err != nil {
			return fmt.Errorf("failed to list ledger days: %w", err)
		}
		cutoff := pruner.Cutoff()
		count := 0
		for _, date := range dates {
			if date < cutoff {
				fmt.Printf("would delete %s\n", date)
				count++
			}
		}
		fmt.Printf("%d day(s) older than %s\n", count, cutoff)
		return nil
	}

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune usage ledger: %w", err)
	}

	fmt.Printf("✅ Deleted %d ledger entries older than %s\n", deleted, pruner.Cutoff())
	return nil
}
