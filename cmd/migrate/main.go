package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/puppytalk-backend/pkg/config"
	"github.com/angelmondragon/puppytalk-backend/pkg/db"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

const serviceName = "migrate"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate work on files only and need neither config nor a database
	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail(ctx, logg, "create migration failed", err)
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return

	case "validate":
		if err := validateMigrations(*dir); err != nil {
			fail(logg.WithField(ctx, "dir", *dir), logg, "migration validation failed", err)
		}
		logg.Info(ctx, "migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if cfg.FeatureFlags.UseSQLite {
		// the goose migrations are Postgres DDL
		if *cmd != "up" {
			fail(ctx, logg, "sqlite databases only support -cmd=up", nil)
		}
		requireResource(ctx, logg, "auto-migrate", migrate.AutoMigrateModels(ctx, dbClient))
		logg.Info(ctx, "sqlite schema migrated from models")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	if *cmd == "version" {
		if *version == "" {
			fail(ctx, logg, "missing -version for version command", nil)
		}
		ctx = logg.WithField(ctx, "target_version", *version)
		if err := migrate.MigrateToVersion(ctx, sqlDB, *version); err != nil {
			fail(ctx, logg, "goose version migrate failed", err)
		}
		logg.Info(ctx, "migrated to version")
		return
	}

	command, err := migrate.ParseCommand(*cmd)
	if err != nil {
		fail(ctx, logg, "unknown -cmd value", err)
	}
	if err := migrate.Run(ctx, sqlDB, command); err != nil {
		fail(ctx, logg, fmt.Sprintf("goose %s failed", command), err)
	}
	logg.Info(ctx, "migrate finished")
}

// validateMigrations checks the on-disk directory and the copy embedded in the binary.
func validateMigrations(dir string) error {
	if err := migrate.ValidateDir(dir); err != nil {
		return fmt.Errorf("validate %s: %w", dir, err)
	}
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		return fmt.Errorf("validate embedded migrations: %w", err)
	}
	return nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	fail(ctx, logg, fmt.Sprintf("resource not working: %s", resource), err)
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
