// Package bootstrap connects the shared runtime dependencies used by the
// snapfeed binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"snapfeed/internal/cache"
	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/models"
	"snapfeed/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo content.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemo {
		if err := seedDemo(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// seedDemo only runs against an empty, non-production database.
func seedDemo(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.IsProduction() {
		return nil
	}
	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	opts := seed.DefaultOptions
	opts.ShouldClean = false
	res, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		return err
	}
	log.Printf("demo data seeded: %d users, %d posts (password %q)", res.Users, res.Posts, seed.DemoPassword)
	return nil
}
