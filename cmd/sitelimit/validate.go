package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/sitelimit/internal/config"
	"github.com/goodtune/sitelimit/internal/policy"
	"github.com/spf13/cobra"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file and policies",
	Long:  `Validate the sitelimit configuration file for syntax and semantic errors, and compile the enforcement policy it points at.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := config.UnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	policyEngine, err := policy.NewEngine(cfg.Enforcement.PolicyDir, quietLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Policy validation failed: %v\n", err)
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)
	_, _ = fmt.Fprintf(os.Stdout, "✅ Policy modules compiled: %s\n", strings.Join(policyEngine.Modules(), ", "))

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults())
	}

	return nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[server]")
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  api_port", cfg.Server.APIPort, defaultCfg.Server.APIPort, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  allowed_origins", cfg.Server.AllowedOrigins, defaultCfg.Server.AllowedOrigins, yellow, green)

	dumpStorage(cyan, "storage", cfg.Storage, defaultCfg.Storage, yellow, green)
	dumpStorage(cyan, "session_storage", cfg.SessionStorage, defaultCfg.SessionStorage, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	_, _ = cyan.Println("\n[tracking]")
	dumpField("  flush_interval", cfg.Tracking.FlushInterval, defaultCfg.Tracking.FlushInterval, yellow, green)
	dumpField("  idle_threshold", cfg.Tracking.IdleThreshold, defaultCfg.Tracking.IdleThreshold, yellow, green)
	dumpField("  max_surfaces", cfg.Tracking.MaxSurfaces, defaultCfg.Tracking.MaxSurfaces, yellow, green)

	_, _ = cyan.Println("\n[enforcement]")
	dumpField("  daily_reset_time", cfg.Enforcement.DailyResetTime, defaultCfg.Enforcement.DailyResetTime, yellow, green)
	dumpField("  policy_dir", cfg.Enforcement.PolicyDir, defaultCfg.Enforcement.PolicyDir, yellow, green)

	_, _ = cyan.Println("\n[retention]")
	dumpField("  usage_days", cfg.Retention.UsageDays, defaultCfg.Retention.UsageDays, yellow, green)
	dumpField("  schedule", cfg.Retention.Schedule, defaultCfg.Retention.Schedule, yellow, green)

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

func dumpStorage(header *color.Color, name string, cfg, defaultCfg config.StorageConfig, modifiedColor, defaultColor *color.Color) {
	_, _ = header.Printf("\n[%s]\n", name)
	dumpField("  type", cfg.Type, defaultCfg.Type, modifiedColor, defaultColor)
	dumpField("  path", cfg.Path, defaultCfg.Path, modifiedColor, defaultColor)
	if cfg.Type != "redis" {
		return
	}
	_, _ = header.Printf("  [%s.redis]\n", name)
	dumpField("    host", cfg.Redis.Host, defaultCfg.Redis.Host, modifiedColor, defaultColor)
	dumpField("    port", cfg.Redis.Port, defaultCfg.Redis.Port, modifiedColor, defaultColor)
	dumpField("    password", redactPassword(cfg.Redis.Password), redactPassword(defaultCfg.Redis.Password), modifiedColor, defaultColor)
	dumpField("    db", cfg.Redis.DB, defaultCfg.Redis.DB, modifiedColor, defaultColor)
	dumpField("    pool_size", cfg.Redis.PoolSize, defaultCfg.Redis.PoolSize, modifiedColor, defaultColor)
	dumpField("    min_idle_conns", cfg.Redis.MinIdleConns, defaultCfg.Redis.MinIdleConns, modifiedColor, defaultColor)
	dumpField("    dial_timeout", cfg.Redis.DialTimeout, defaultCfg.Redis.DialTimeout, modifiedColor, defaultColor)
	dumpField("    read_timeout", cfg.Redis.ReadTimeout, defaultCfg.Redis.ReadTimeout, modifiedColor, defaultColor)
	dumpField("    write_timeout", cfg.Redis.WriteTimeout, defaultCfg.Redis.WriteTimeout, modifiedColor, defaultColor)
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
