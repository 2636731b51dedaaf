package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups[strings.TrimSuffix(f, ".up.sql")] = true
		case strings.HasSuffix(f, ".down.sql"):
			downs[strings.TrimSuffix(f, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", f)
		}
	}
	if len(ups) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for name := range ups {
		if !downs[name] {
			t.Errorf("migration %s has no down file", name)
		}
	}
}

func TestSchemaHasAggregationTables(t *testing.T) {
	b, err := migrationFS.ReadFile("migrations/000001_init_schema.up.sql")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	for _, table := range []string{"ledger_entries", "aggregation_state", "audit_logs", "contract_rules"} {
		if !strings.Contains(string(b), "CREATE TABLE "+table) {
			t.Errorf("schema misses table %s", table)
		}
	}
}

func TestRunMigrationsRejectsBadURL(t *testing.T) {
	if _, err := newMigrate("not-a-url"); err == nil {
		t.Fatalf("expected error for invalid database URL")
	}
}
