package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "STORE_TIMEOUT", "HEALTH_INTERVAL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Store.Timeout != 5*time.Second {
		t.Errorf("Store.Timeout = %v", cfg.Store.Timeout)
	}
	if cfg.Monitor.HealthInterval != 5*time.Minute {
		t.Errorf("HealthInterval = %v", cfg.Monitor.HealthInterval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("MIGRATIONS", "yes")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("LEARNING_FLUSH_INTERVAL", "not-a-duration")

	cfg := Load()
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Port != 6543 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if !cfg.App.Migrations {
		t.Error("Migrations should be enabled")
	}
	if cfg.Store.Timeout != 250*time.Millisecond {
		t.Errorf("Store.Timeout = %v", cfg.Store.Timeout)
	}
	if cfg.Learning.FlushInterval != 10*time.Minute {
		t.Errorf("invalid duration should fall back, got %v", cfg.Learning.FlushInterval)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "quotes", SSLMode: "disable"}
	if got, want := d.DSN(), "host=db port=5432 user=u password=p dbname=quotes sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	if got, want := d.URL(), "postgres://u:p@db:5432/quotes?sslmode=disable"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
