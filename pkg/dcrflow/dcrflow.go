package dcrflow

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dcreum/dcrflow/internal/config"
	"github.com/dcreum/dcrflow/internal/controllers"
	"github.com/dcreum/dcrflow/internal/engine"
	"github.com/dcreum/dcrflow/internal/ledgers/memledger"
	"github.com/dcreum/dcrflow/internal/migrations"
	"github.com/dcreum/dcrflow/internal/repository"
	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
	"github.com/dcreum/dcrflow/pkg/dcrflow/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/editor"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

// Start boots the ledger mirror service and HTTP server.
// This call blocks until the HTTP server stops.
func Start(mux *http.ServeMux) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("DCR_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLLITE {
		db = setupSqlLiteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := core.NewRealClock()
	bookmarkRepo := repository.NewBookmarkRepository(db, clock)
	userRepo := repository.NewUserRepository(db, clock)

	account := domain.Address(config.GetSystemSettingString(config.LEDGER_ACCOUNT))
	ledger := memledger.New(account, clock)
	defer ledger.Close()

	registry := engine.NewMirrorRegistry(ledger, clock)
	defer registry.CloseAll()

	if config.GetSystemSettingString(config.SEED_DEMO_WORKFLOW) == "true" {
		if err := seedDemoWorkflow(context.Background(), registry); err != nil {
			slog.Error("Seeding demo workflow failed", "error", err)
		}
	}

	if mux == nil {
		mux = http.NewServeMux()
	}
	workflowsController := controllers.NewWorkflowsController(registry, bookmarkRepo, userRepo)
	workflowsController.RegisterRoutes(mux)
	usersController := controllers.NewUsersController(userRepo)
	usersController.RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// seedDemoWorkflow submits the support ticket demo graph so a fresh
// deployment has a workflow to mirror at id 0.
func seedDemoWorkflow(ctx context.Context, registry *engine.MirrorRegistry) error {
	draft := editor.NewDraft("Support ticket")

	submit := draft.AddActivity("Submit ticket", nil)
	propose := draft.AddActivity("Propose solution", nil)
	reject := draft.AddActivity("Reject solution", nil)
	closeTicket := draft.AddActivity("Close ticket", nil)
	accept := draft.AddActivity("Accept solution", nil)

	for _, id := range []uint32{submit, propose, reject, accept} {
		if err := draft.SetIncluded(id, true); err != nil {
			return err
		}
	}

	relations := []struct {
		from, to uint32
		typ      domain.RelationType
	}{
		{submit, submit, domain.RelationExclude},
		{submit, propose, domain.RelationCondition},
		{submit, closeTicket, domain.RelationInclude},
		{propose, reject, domain.RelationCondition},
		{propose, accept, domain.RelationResponse},
		{propose, accept, domain.RelationMilestone},
		{reject, propose, domain.RelationResponse},
		{accept, propose, domain.RelationExclude},
		{accept, reject, domain.RelationExclude},
		{accept, closeTicket, domain.RelationCondition},
		{accept, closeTicket, domain.RelationResponse},
	}
	for _, r := range relations {
		if err := draft.AddRelation(r.from, r.to, r.typ); err != nil {
			return err
		}
	}

	tx, err := registry.Create(ctx, draft)
	if err != nil {
		return err
	}
	slog.Info("Seeded demo workflow", "name", draft.Name(), "tx", tx)
	return nil
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("DCR_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("DCR_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlLite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlLite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlLite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("DCR_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("DCR_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("DCR_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
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

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
