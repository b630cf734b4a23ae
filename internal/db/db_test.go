package db_test

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Hussein-Mazeh/KeyRecovery/internal/db"
)

func openRegistry(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "data", "registry.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		db.Close(d)
	})
	if err := db.Migrate(d); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	return d
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	d := openRegistry(t)

	info, err := os.Stat(d.Path())
	if err != nil {
		t.Fatalf("expected database file to exist at %q: %v", d.Path(), err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := db.Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openRegistry(t)
	if err := db.Migrate(d); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}

func TestMarkBackedUpUpserts(t *testing.T) {
	d := openRegistry(t)

	ok, err := db.IsBackedUp(d, "GADDR")
	if err != nil {
		t.Fatalf("IsBackedUp: %v", err)
	}
	if ok {
		t.Fatal("fresh registry reports a backup")
	}

	if err := db.MarkBackedUp(d, "GADDR", 2, "raw", "argon2id"); err != nil {
		t.Fatalf("MarkBackedUp: %v", err)
	}
	if err := db.MarkBackedUp(d, "GADDR", 2, "mnemonic", "scrypt"); err != nil {
		t.Fatalf("MarkBackedUp again: %v", err)
	}

	row, err := db.GetBackup(d, "GADDR")
	if err != nil {
		t.Fatalf("GetBackup: %v", err)
	}
	if row.Kind != "mnemonic" || row.KDF != "scrypt" || row.Version != 2 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.CreatedAt == "" || row.UpdatedAt == "" {
		t.Fatalf("timestamps not set: %+v", row)
	}

	rows, err := db.ListBackups(d)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestDeleteBackup(t *testing.T) {
	d := openRegistry(t)
	if err := db.MarkBackedUp(d, "GADDR", 2, "raw", "argon2id"); err != nil {
		t.Fatalf("MarkBackedUp: %v", err)
	}
	if err := db.DeleteBackup(d, "GADDR"); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	if err := db.DeleteBackup(d, "GADDR"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := db.GetBackup(d, "GADDR"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRestoreHistoryNewestFirst(t *testing.T) {
	d := openRegistry(t)

	for i, addr := range []string{"GA", "GB", "GC"} {
		if _, err := db.RecordRestore(d, addr, i); err != nil {
			t.Fatalf("RecordRestore %s: %v", addr, err)
		}
	}

	all, err := db.ListRestores(d, 0)
	if err != nil {
		t.Fatalf("ListRestores: %v", err)
	}
	if len(all) != 3 || all[0].Address != "GC" || all[0].AccountIndex != 2 {
		t.Fatalf("unexpected history: %+v", all)
	}

	two, err := db.ListRestores(d, 2)
	if err != nil {
		t.Fatalf("ListRestores limited: %v", err)
	}
	if len(two) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(two))
	}
}

func TestNilHandle(t *testing.T) {
	if err := db.Migrate(nil); err == nil {
		t.Fatal("expected error for nil handle")
	}
	if _, err := db.IsBackedUp(nil, "GA"); err == nil {
		t.Fatal("expected error for nil handle")
	}
	if err := db.Close(nil); err != nil {
		t.Fatalf("Close(nil) = %v", err)
	}
}
