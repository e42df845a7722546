// Package config loads server configuration from defaults, an optional YAML
// file, and MELTCORE_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Supported db_driver values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port                 int      `mapstructure:"port"`
	DBDriver             string   `mapstructure:"db_driver"` // postgres | sqlite
	DBHost               string   `mapstructure:"db_host"`
	DBPort               int      `mapstructure:"db_port"`
	DBName               string   `mapstructure:"db_name"`
	DBUser               string   `mapstructure:"db_user"`
	DBPassword           string   `mapstructure:"db_password"` // no usable default; required for postgres
	DBSSLMode            string   `mapstructure:"db_sslmode"`
	DBPath               string   `mapstructure:"db_path"` // sqlite only
	DBMaxOpenConns       int      `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns       int      `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetimeSec int      `mapstructure:"db_conn_max_lifetime_sec"`
	DBConnMaxIdleSec     int      `mapstructure:"db_conn_max_idle_sec"`
	LogLevel             string   `mapstructure:"log_level"`
	AllowedOrigins       []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec    int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default
	QueryTimeoutSec      int      `mapstructure:"query_timeout_sec"`    // per-request store deadline
	ShutdownTimeoutSec   int      `mapstructure:"shutdown_timeout_sec"` // graceful shutdown wait
	TopLimitMax          int      `mapstructure:"top_limit_max"`        // cap for the limit query param
	SaveMaxBodyBytes     int      `mapstructure:"save_max_body_bytes"`  // layout strings can be large
	RateLimitEnabled     bool     `mapstructure:"rate_limit_enabled"`
	RateLimitPerSec      float64  `mapstructure:"rate_limit_per_sec"` // token bucket refill per client IP
	RateLimitBurst       int      `mapstructure:"rate_limit_burst"`
	OTelEndpoint         string   `mapstructure:"otel_endpoint"` // tracing disabled when empty
	TraceSamplingRate    float64  `mapstructure:"trace_sampling_rate"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/meltcore/")
	v.AddConfigPath("$HOME/.meltcore")
	v.AddConfigPath(".")

	// Defaults
	v.SetDefault("port", 8080)
	v.SetDefault("db_driver", DriverPostgres)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_name", "meltcore")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_path", "./meltcore.db")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime_sec", 300)
	v.SetDefault("db_conn_max_idle_sec", 60)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("request_timeout_sec", 30)
	v.SetDefault("query_timeout_sec", 5)
	v.SetDefault("shutdown_timeout_sec", 10)
	v.SetDefault("top_limit_max", 100)
	v.SetDefault("save_max_body_bytes", 1<<20)
	v.SetDefault("rate_limit_enabled", true)
	v.SetDefault("rate_limit_per_sec", 10.0)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("trace_sampling_rate", 1.0)

	// Environment variables
	v.SetEnvPrefix("MELTCORE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		return nil, fmt.Errorf("unsupported db_driver %q (want %s or %s)", cfg.DBDriver, DriverPostgres, DriverSQLite)
	}

	return &cfg, nil
}

// splitOrigins normalizes allowed_origins. The env var arrives as one
// comma-separated string while YAML gives a list; both end up trimmed with
// one origin per element.
func splitOrigins(raw []string) []string {
	var origins []string
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

// ConnectionString assembles the PostgreSQL DSN in keyword/value form.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
