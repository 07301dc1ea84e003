package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("Expected default driver mysql, got %s", cfg.Database.Driver)
	}
	if cfg.Pool.Capacity != 100 {
		t.Errorf("Expected default capacity 100, got %d", cfg.Pool.Capacity)
	}
	if cfg.Pool.MaxDeadlocks != 5 {
		t.Errorf("Expected default max_deadlocks 5, got %d", cfg.Pool.MaxDeadlocks)
	}
	if cfg.Pool.BackoffMs != 500 {
		t.Errorf("Expected default backoff_ms 500, got %d", cfg.Pool.BackoffMs)
	}
}

func TestLoad_Values(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[database]
driver = postgres
dsn = postgres://localhost/test?sslmode=disable

[pool]
capacity = 250
max_deadlocks = 8
backoff_ms = 100
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected driver postgres, got %s", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://localhost/test?sslmode=disable" {
		t.Errorf("Unexpected DSN: %s", cfg.Database.DSN)
	}
	if cfg.Pool.Capacity != 250 {
		t.Errorf("Expected capacity 250, got %d", cfg.Pool.Capacity)
	}
	if cfg.Pool.MaxDeadlocks != 8 {
		t.Errorf("Expected max_deadlocks 8, got %d", cfg.Pool.MaxDeadlocks)
	}
	if cfg.Pool.BackoffMs != 100 {
		t.Errorf("Expected backoff_ms 100, got %d", cfg.Pool.BackoffMs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TXNPOOL_DATABASE_DSN", "root:secret@tcp(10.0.0.5:3306)/prod")
	t.Setenv("TXNPOOL_POOL_CAPACITY", "1000")
	t.Setenv("TXNPOOL_POOL_BACKOFF_MS", "not-a-number")

	cfg, err := Load(writeConfig(t, `
[database]
dsn = root@tcp(127.0.0.1:3306)/test

[pool]
capacity = 50
backoff_ms = 250
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Database.DSN != "root:secret@tcp(10.0.0.5:3306)/prod" {
		t.Errorf("Expected env DSN override, got %s", cfg.Database.DSN)
	}
	if cfg.Pool.Capacity != 1000 {
		t.Errorf("Expected env capacity override, got %d", cfg.Pool.Capacity)
	}
	// Unparseable env values keep the file value
	if cfg.Pool.BackoffMs != 250 {
		t.Errorf("Expected file backoff_ms 250, got %d", cfg.Pool.BackoffMs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
