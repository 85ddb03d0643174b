package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(Migrations, "migrations/*_"+suffix+".sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, got %d", suffix, len(matches))
	}
	data, err := fs.ReadFile(Migrations, matches[0])
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	return string(data)
}

func TestFlashOfferMigrationGuardsStockAndLiveBookings(t *testing.T) {
	content := readMigration(t, "create_flash_offers_bookings")
	for _, sub := range []string{
		"CHECK (current_stock >= 0 AND current_stock <= total_stock)",
		"CREATE UNIQUE INDEX IF NOT EXISTS bookings_member_offer_live_key",
		"WHERE status <> 'cancelled'",
		"DROP TABLE IF EXISTS flash_offers",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestActivationMigrationConstraints(t *testing.T) {
	content := readMigration(t, "create_privilege_activations")
	for _, sub := range []string{
		"CONSTRAINT privilege_activations_validation_code_key UNIQUE (validation_code)",
		"CHECK (feedback_rating BETWEEN 1 AND 5)",
		"DROP TABLE IF EXISTS privilege_activations",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Partner Hours!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260402083000_add_partner_hours.sql" {
		t.Fatalf("unexpected filename %q", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration invalid: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "Add Partner Hours!", now); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
	if _, err := CreateSQLMigration(dir, "!!!", now); err == nil {
		t.Fatalf("expected empty sanitized name to fail")
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}
