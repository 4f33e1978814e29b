package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "/etc/sitelimit/config.yaml"

// Config holds the complete application configuration
type Config struct {
	Server         ServerConfig      `mapstructure:"server"`
	Storage        StorageConfig     `mapstructure:"storage"`
	SessionStorage StorageConfig     `mapstructure:"session_storage"`
	Logging        LoggingConfig     `mapstructure:"logging"`
	Tracking       TrackingConfig    `mapstructure:"tracking"`
	Enforcement    EnforcementConfig `mapstructure:"enforcement"`
	Retention      RetentionConfig   `mapstructure:"retention"`
}

// ServerConfig defines listener ports and addresses
type ServerConfig struct {
	BindAddress    string   `mapstructure:"bind_address"`
	APIPort        int      `mapstructure:"api_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig defines a storage tier backend
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings.
// When Port is zero, Host is used as a full "host:port" address.
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines activity tracking settings
type TrackingConfig struct {
	FlushInterval string `mapstructure:"flush_interval"`
	IdleThreshold string `mapstructure:"idle_threshold"`
	MaxSurfaces   int    `mapstructure:"max_surfaces"`
}

// EnforcementConfig defines limit enforcement settings
type EnforcementConfig struct {
	DailyResetTime string `mapstructure:"daily_reset_time"`
	PolicyDir      string `mapstructure:"policy_dir"`
}

// RetentionConfig defines how long the usage ledger is kept
type RetentionConfig struct {
	UsageDays int    `mapstructure:"usage_days"`
	Schedule  string `mapstructure:"schedule"`
}

// FlushIntervalDuration returns the parsed tracking flush interval.
func (c TrackingConfig) FlushIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.FlushInterval)
	return d
}

// IdleThresholdDuration returns the parsed idle threshold.
func (c TrackingConfig) IdleThresholdDuration() time.Duration {
	d, _ := time.ParseDuration(c.IdleThreshold)
	return d
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SITELIMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// UnknownKeys lists keys in the config file that no setting reads.
func UnknownKeys(configPath string) ([]string, error) {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return nil, err
	}

	defaults := viper.New()
	setDefaults(defaults)
	known := make(map[string]bool)
	for _, key := range defaults.AllKeys() {
		known[key] = true
	}

	unknown := []string{}
	for _, key := range file.AllKeys() {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8765)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/sitelimit/sitelimit.bolt")
	setRedisDefaults(v, "storage.redis")

	v.SetDefault("session_storage.type", "bolt")
	v.SetDefault("session_storage.path", "/run/sitelimit/session.bolt")
	setRedisDefaults(v, "session_storage.redis")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.flush_interval", "30s")
	v.SetDefault("tracking.idle_threshold", "60s")
	v.SetDefault("tracking.max_surfaces", 512)

	// Enforcement defaults
	v.SetDefault("enforcement.daily_reset_time", "00:00")
	v.SetDefault("enforcement.policy_dir", "")

	// Retention defaults
	v.SetDefault("retention.usage_days", 90)
	v.SetDefault("retention.schedule", "30 3 * * *")
}

func setRedisDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".host", "localhost")
	v.SetDefault(prefix+".port", 6379)
	v.SetDefault(prefix+".password", "")
	v.SetDefault(prefix+".db", 0)
	v.SetDefault(prefix+".pool_size", 10)
	v.SetDefault(prefix+".min_idle_conns", 2)
	v.SetDefault(prefix+".dial_timeout", "5s")
	v.SetDefault(prefix+".read_timeout", "3s")
	v.SetDefault(prefix+".write_timeout", "3s")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if err := validateStorage("storage", &cfg.Storage); err != nil {
		return err
	}
	if err := validateStorage("session_storage", &cfg.SessionStorage); err != nil {
		return err
	}

	flush, err := time.ParseDuration(cfg.Tracking.FlushInterval)
	if err != nil {
		return fmt.Errorf("invalid tracking.flush_interval: %w", err)
	}
	if flush < time.Second {
		return fmt.Errorf("tracking.flush_interval must be at least 1s, got %s", flush)
	}
	if _, err := time.ParseDuration(cfg.Tracking.IdleThreshold); err != nil {
		return fmt.Errorf("invalid tracking.idle_threshold: %w", err)
	}
	if cfg.Tracking.MaxSurfaces <= 0 {
		return fmt.Errorf("tracking.max_surfaces must be positive, got %d", cfg.Tracking.MaxSurfaces)
	}

	if _, err := time.Parse("15:04", cfg.Enforcement.DailyResetTime); err != nil {
		return fmt.Errorf("invalid enforcement.daily_reset_time %q: expected HH:MM", cfg.Enforcement.DailyResetTime)
	}

	if cfg.Retention.UsageDays <= 0 {
		return fmt.Errorf("retention.usage_days must be positive, got %d", cfg.Retention.UsageDays)
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		return fmt.Errorf("invalid retention.schedule: %w", err)
	}

	return nil
}

func validateStorage(name string, cfg *StorageConfig) error {
	if cfg.Type == "" {
		cfg.Type = "bolt"
	}
	switch cfg.Type {
	case "bolt":
		if cfg.Path == "" {
			return fmt.Errorf("%s.path is required for bolt storage", name)
		}
	case "redis":
		if cfg.Redis.Host == "" {
			return fmt.Errorf("%s.redis.host is required for redis storage", name)
		}
	default:
		return fmt.Errorf("unsupported %s.type: %s (must be 'bolt' or 'redis')", name, cfg.Type)
	}
	return nil
}
