package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/privilegia/privilegia-backend/internal/maintenance"
	"github.com/privilegia/privilegia-backend/internal/privileges"
	"github.com/privilegia/privilegia-backend/pkg/config"
	"github.com/privilegia/privilegia-backend/pkg/db"
	"github.com/privilegia/privilegia-backend/pkg/logger"
	"github.com/privilegia/privilegia-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "command: up|down|status|version|create|validate|maintenance")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory (create and validate only)")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	task := flag.String("task", "", "maintenance task name (for -cmd=maintenance)")
	flag.Parse()

	// create and validate work on the source tree and need no config.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, *cmd); err != nil {
			fail("goose %s failed: %v", *cmd, err)
		}
	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *version); err != nil {
			fail("goose version migrate failed: %v", err)
		}
	case "maintenance":
		runMaintenance(ctx, logg, dbClient, *task)
	default:
		fail("unknown -cmd value: %s", *cmd)
	}
}

func runMaintenance(ctx context.Context, logg *logger.Logger, dbClient *db.Client, task string) {
	tasks := maintenance.DefaultTasks(privileges.NewRepository(dbClient.DB()), nil)
	if task == "" {
		fail("missing -task for maintenance (known: %v)", tasks.Names())
	}
	runner, err := maintenance.NewRunner(maintenance.RunnerParams{DB: dbClient.DB(), Logger: logg})
	requireResource(ctx, logg, "maintenance runner", err)

	result, err := tasks.Run(ctx, runner, task)
	if err != nil {
		logg.Error(ctx, "maintenance task failed", err)
		os.Exit(1)
	}
	if result.Skipped {
		fmt.Printf("task %s already completed at %s\n", result.Name, result.CompletedAt.Format(time.RFC3339))
		return
	}
	fmt.Printf("task %s completed: %d rows\n", result.Name, result.AffectedRows)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
