package config

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// Config holds the loader configuration
type Config struct {
	Database DatabaseConfig
	Pool     PoolConfig
}

// DatabaseConfig identifies the target database
type DatabaseConfig struct {
	Driver string // "mysql" or "postgres"
	DSN    string
}

// PoolConfig holds the batching and retry settings
type PoolConfig struct {
	Capacity     int
	MaxDeadlocks int
	BackoffMs    int
}

// Load reads configuration from an INI file with environment variable overrides
func Load(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Database: loadDatabaseConfig(cfg),
		Pool:     loadPoolConfig(cfg),
	}

	// Environment variable overrides for the database
	if v := os.Getenv("TXNPOOL_DATABASE_DRIVER"); v != "" {
		config.Database.Driver = v
	}
	if v := os.Getenv("TXNPOOL_DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}

	// Environment variable overrides for the pool
	if v := envInt("TXNPOOL_POOL_CAPACITY"); v > 0 {
		config.Pool.Capacity = v
	}
	if v := envInt("TXNPOOL_POOL_MAX_DEADLOCKS"); v > 0 {
		config.Pool.MaxDeadlocks = v
	}
	if v := envInt("TXNPOOL_POOL_BACKOFF_MS"); v > 0 {
		config.Pool.BackoffMs = v
	}

	return config, nil
}

func loadDatabaseConfig(cfg *ini.File) DatabaseConfig {
	sec := cfg.Section("database")
	return DatabaseConfig{
		Driver: sec.Key("driver").MustString("mysql"),
		DSN:    sec.Key("dsn").MustString("root@tcp(127.0.0.1:3306)/test"),
	}
}

func loadPoolConfig(cfg *ini.File) PoolConfig {
	sec := cfg.Section("pool")
	return PoolConfig{
		Capacity:     sec.Key("capacity").MustInt(100),
		MaxDeadlocks: sec.Key("max_deadlocks").MustInt(5),
		BackoffMs:    sec.Key("backoff_ms").MustInt(500),
	}
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
