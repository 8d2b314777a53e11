package sqllite

import (
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dcreum/dcrflow/internal/migrations"
)

// setupTestDatabase creates a fresh migrated SQLite database per test.
func setupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	filename := filepath.Join(t.TempDir(), "dcrflow-test.db")
	os.Setenv("DCR_DATABASE_TYPE", "SQLLITE")
	os.Setenv("DCR_DATABASE_SQLLITE_FILE_NAME", filename)

	if err := runMigrations("sqlite3://" + filename); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func runMigrations(dbURL string) error {
	sub, err := fs.Sub(migrations.FS, "sqllite3")
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
