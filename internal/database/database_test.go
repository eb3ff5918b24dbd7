package database

import (
	"context"
	"testing"

	"snapfeed/internal/config"
	"snapfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePoolDefaults(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, configurePool(db, &config.Config{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 25, sqlDB.Stats().MaxOpenConnections)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBSchemaMode: "hybrid", DBAutoMigrate: true}, true, true, false},
		{"hybrid dev no auto", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, false, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid", DBAutoMigrate: true}, true, false, false},
		{"default mode", config.Config{Env: "test", DBAutoMigrate: true}, true, true, false},
		{"sql", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto dev", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, false},
		{"auto prod", config.Config{Env: "prod", DBSchemaMode: "auto"}, false, false, true},
		{"unknown", config.Config{Env: "development", DBSchemaMode: "magic"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := EmbeddedMigrations()
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, "000001_create_users", files[0].String())
	assert.Equal(t, uint(4), files[3].Version)

	pending := pendingAfter(files, 2)
	require.Len(t, pending, 2)
	assert.Equal(t, uint(3), pending[0].Version)
}

func TestAutoMigrateCreatesActivityLogIndexes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger()})
	require.NoError(t, err)
	require.NoError(t, runAutoMigrate(db))

	m := db.Migrator()
	assert.True(t, m.HasTable(&models.ActivityLog{}))
	assert.True(t, m.HasIndex(&models.ActivityLog{}, "idx_activity_logs_subject"))
	assert.True(t, m.HasIndex(&models.Like{}, "idx_likes_user_post"))
	assert.NoError(t, Ping(context.Background(), db))
}

func TestPersistentModels(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.ActivityLog); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include ActivityLog")
}

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", DSN(cfg))
}
