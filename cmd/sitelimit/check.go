package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/coder/quartz"
	"github.com/fatih/color"
	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/enforce"
	"github.com/goodtune/sitelimit/internal/policy"
	"github.com/goodtune/sitelimit/internal/storage"
	"github.com/goodtune/sitelimit/internal/usage"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check DOMAIN|URL",
	Short: "Check the enforcement decision for a site",
	Long: `Check what sitelimit would decide for a site right now: its limit, today's
usage, whether it is blocked, and what the enforcement policy says. Nothing is
changed. With bolt storage the daemon must be stopped, since it holds the
database lock.`,
	Example: `  sitelimit check reddit.com
  sitelimit -c config.yaml check https://www.youtube.com/watch?v=abc`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	domain := args[0]
	if strings.Contains(domain, "://") {
		domain = usage.ExtractDomain(domain)
		if domain == "" {
			return fmt.Errorf("not a trackable address: %s", args[0])
		}
	}
	domain = storage.NormalizeDomain(domain)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := quietLogger()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	policyEngine, err := policy.NewEngine(cfg.Enforcement.PolicyDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	ctx := context.Background()
	controller := enforce.NewController(st.durable.Usage(), st.durable.Limits(), st.session.Blocks(), policyEngine, nil, quartz.NewReal(), logger)

	status, err := controller.Status(ctx, domain)
	if err != nil {
		return err
	}

	decision := policyEngine.Decide(ctx, policy.Facts{
		Domain:         status.Domain,
		Date:           status.Date,
		UsedSeconds:    status.UsedSeconds,
		LimitSeconds:   status.LimitSeconds,
		AlreadyBlocked: status.Blocked,
	})

	limit, err := st.durable.Limits().Get(ctx, domain)
	if err != nil {
		limit = nil
	}

	printCheckResult(status, limit, decision)
	return nil
}

// printCheckResult prints the check result with colors
func printCheckResult(status *enforce.Status, limit *storage.SiteLimit, decision policy.Decision) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("SITE LIMIT CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Domain:     %s\n", status.Domain)
	fmt.Printf("Date:       %s\n", status.Date)
	fmt.Printf("Category:   %s\n", usage.CategoryFor(status.Domain, limit))
	fmt.Printf("Limit:      %s\n", usage.FormatLimit(status.LimitSeconds))
	fmt.Printf("Used today: %s\n", usage.FormatDuration(status.UsedSeconds))
	if status.Limited {
		fmt.Printf("Remaining:  %s\n", usage.FormatDuration(status.RemainingSeconds))
	}
	fmt.Println()

	cyan.Print("Blocked:    ")
	if status.Blocked {
		red.Println("YES")
		fmt.Println("            → Pages on this site show the intervention page until the next reset")
	} else {
		green.Println("NO")
	}

	cyan.Print("Policy:     ")
	switch {
	case !status.Limited:
		green.Println("NO LIMIT")
	case decision.Block:
		red.Println("BLOCK")
	default:
		green.Println("ALLOW")
	}
	if status.Limited {
		fmt.Printf("Reason:     %s\n", decision.Reason)
	}
	if decision.Fallback {
		yellow.Println("            → Policy evaluation failed, built-in threshold was used")
	}
	if status.Limited && decision.Block && !status.Blocked {
		yellow.Println("            → The daemon blocks this site at its next recheck")
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
