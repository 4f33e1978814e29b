package main

import (
	"fmt"
	"os"

	"github.com/goodtune/sitelimit/internal/config"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitelimit",
	Short: "sitelimit - per-site daily time limits for the browser",
	Long: `sitelimit tracks how long the focused browser tab spends on each site,
keeps a per-day ledger, and blocks a site for the rest of the day once its
daily limit is used up. Browser hosts report activity over a local HTTP API.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
