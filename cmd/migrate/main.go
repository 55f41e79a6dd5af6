package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/storage/db"
	"resume-workflow/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	closeLog, err := telemetry.Setup(cfg.LogLevel, cfg.LogFile)
	if err == nil {
		defer closeLog()
	}
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		telemetry.Error("migrate.database_url_missing", nil)
		os.Exit(1)
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	version, err := db.SchemaVersion(ctx, sqlDB)
	if err != nil {
		telemetry.Warn("migrate.version_unknown", map[string]any{"error": err.Error()})
	}
	telemetry.Info("migrate.completed", map[string]any{"version": version})
}
