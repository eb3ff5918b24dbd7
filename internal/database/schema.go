package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"snapfeed/internal/config"
	"snapfeed/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	Version            uint
	Dirty              bool
	Pending            []MigrationFile
}

func isProdLikeEnv(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e == "production" || e == "prod" || e == "staging" || e == "stage"
}

func normalizedSchemaMode(cfg *config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		return SchemaModeHybrid
	}
	return mode
}

// schemaPolicy decides which schema steps run. SQL migrations are the
// source of truth; AutoMigrate is a development convenience.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	mode := normalizedSchemaMode(cfg)
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if prodLike {
			return false, false, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q", cfg.Env)
		}
		return false, true, nil
	case SchemaModeHybrid:
		return true, !prodLike && cfg.DBAutoMigrate, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

func runAutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema runs the SQL migrations and/or AutoMigrate according to cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		mg, err := NewMigrator(DSN(cfg))
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		defer func() { _ = mg.Close() }()
		if err := mg.Up(); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if runAuto {
		mode := normalizedSchemaMode(cfg)
		middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("mode", mode), slog.String("env", cfg.Env))
		if err := runAutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports the policy for cfg and, when SQL migrations are
// in play, the applied version and the embedded migrations still pending.
func GetSchemaStatus(cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               normalizedSchemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
	}

	if !runSQL {
		return status, nil
	}

	mg, err := NewMigrator(DSN(cfg))
	if err != nil {
		return nil, err
	}
	defer func() { _ = mg.Close() }()

	status.Version, status.Dirty, err = mg.Version()
	if err != nil {
		return nil, err
	}

	files, err := EmbeddedMigrations()
	if err != nil {
		return nil, err
	}
	status.Pending = pendingAfter(files, status.Version)

	return status, nil
}

func pendingAfter(files []MigrationFile, version uint) []MigrationFile {
	var pending []MigrationFile
	for _, f := range files {
		if f.Version > version {
			pending = append(pending, f)
		}
	}
	return pending
}
