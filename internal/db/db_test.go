package db

import (
	"path/filepath"
	"testing"

	"github.com/mmamrila/aiquoting-sub001/internal/config"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"quotes.db", "quotes.db?_busy_timeout=5000"},
		{"file:quotes.db?cache=shared", "file:quotes.db?cache=shared&_busy_timeout=5000"},
		{"quotes.db?_busy_timeout=100", "quotes.db?_busy_timeout=100"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.in); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "quotes.db")}
	conn, err := Connect(cfg, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	if err := Migrate(conn, cfg, false, nil); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"quote_outcomes", "ai_interactions_enhanced", "ai_pattern_aggregates"} {
		if !conn.Migrator().HasTable(table) {
			t.Errorf("table %s missing after migrate", table)
		}
	}
}
