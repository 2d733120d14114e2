// Package config loads the process configuration once at startup and hands
// back an explicit value. Nothing here is a package-level singleton: every
// operation that needs configuration takes it as an argument, following the
// re-architecture note in SPEC_FULL.md against global lazily-initialized
// settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Postgres holds connection parameters for the balance-history database.
type Postgres struct {
	Host              string        `mapstructure:"pg_host"`
	Port              uint16        `mapstructure:"pg_port"`
	Database          string        `mapstructure:"pg_database"`
	User              string        `mapstructure:"pg_user"`
	Password          string        `mapstructure:"pg_password"`
	PoolSize          int           `mapstructure:"pg_pool_size"`
	ConnectTimeout    time.Duration `mapstructure:"pg_connect_timeout"`
	KeepAliveIdle     time.Duration `mapstructure:"pg_keepalive_idle"`
	DistributionSchema string       `mapstructure:"pg_distribution_schema"`
	ReaderRole        string        `mapstructure:"pg_reader_role"`
}

// DSN renders a libpq-style connection string for the pgdriver.
func (p Postgres) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database,
	)
}

// Config is the fully-resolved process configuration.
type Config struct {
	Postgres Postgres `mapstructure:",squash"`

	BlockchainUpdatesURL    string        `mapstructure:"blockchain_updates_url"`
	BlockchainStartHeight   int64         `mapstructure:"blockchain_start_height"`
	StreamInactivityTimeout time.Duration `mapstructure:"stream_inactivity_timeout"`

	ServicePort uint16 `mapstructure:"port"`
	MetricsPort uint16 `mapstructure:"metrics_port"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Load reads configuration from environment variables (prefixed
// WAVES_BALANCE_HISTORY_) and, if present, an optional config file path
// passed by the caller (commonly wired to a --config CLI flag).
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("waves_balance_history")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper knows about; keys without a default
	// are bound explicitly so their environment variables are read too.
	for _, key := range []string{"pg_host", "pg_database", "pg_user", "pg_password", "blockchain_updates_url", "log_file"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("port", 8080)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("pg_port", 5432)
	v.SetDefault("pg_pool_size", 20)
	v.SetDefault("pg_connect_timeout", 5*time.Second)
	v.SetDefault("pg_keepalive_idle", 30*time.Second)
	v.SetDefault("pg_distribution_schema", "asset_distribution")
	v.SetDefault("pg_reader_role", "reader")
	v.SetDefault("blockchain_start_height", int64(1))
	v.SetDefault("stream_inactivity_timeout", 300*time.Second)
	v.SetDefault("log_level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.BlockchainUpdatesURL == "" {
		return Config{}, fmt.Errorf("config: blockchain_updates_url is required")
	}
	if cfg.Postgres.Host == "" {
		return Config{}, fmt.Errorf("config: pg_host is required")
	}

	return cfg, nil
}
