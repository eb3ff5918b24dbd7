// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"testing"
	"time"

	"snapfeed/internal/database"
	"snapfeed/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a migrated in-memory database scoped to t.
//
// The pool is pinned to one connection because every new ":memory:"
// connection sees its own empty database. Code running inside a transaction
// must therefore only use the tx handle or it will block on the pool.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...), "migrate sqlite")
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, db *gorm.DB, name, email string, verified bool) *models.User {
	t.Helper()
	user := &models.User{
		Name:     name,
		Email:    email,
		Password: "$2a$10$placeholderplaceholderplaceholderplaceholderpla",
	}
	if verified {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post owned by userID with a tiny PNG image.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, caption string) *models.Post {
	t.Helper()
	post := &models.Post{
		UserID: userID,
		Image:  PNGDataURI(t, 1, 1),
	}
	if caption != "" {
		post.Caption = &caption
	}
	require.NoError(t, db.Omit("User").Create(post).Error)
	return post
}

// CountLogs returns the number of activity log rows with the given log name.
// An empty name counts every row.
func CountLogs(t testing.TB, db *gorm.DB, logName string) int64 {
	t.Helper()
	q := db.Model(&models.ActivityLog{})
	if logName != "" {
		q = q.Where("log_name = ?", logName)
	}
	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}
