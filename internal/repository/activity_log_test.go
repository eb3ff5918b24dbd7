package repository

import (
	"context"
	"testing"
	"time"

	"snapfeed/internal/models"
	"snapfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLogRepository_ListByUserPages(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "Ada", "ada@example.com", true)
	other := testutil.CreateUser(t, db, "Grace", "grace@example.com", true)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		log := &models.ActivityLog{
			UserID:      &user.ID,
			LogName:     models.LogPost,
			Description: "Created a new post",
			Properties:  models.Properties{"n": i},
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, log))
	}
	require.NoError(t, repo.Create(ctx, &models.ActivityLog{UserID: &other.ID, LogName: models.LogAuth, Description: "User logged in"}))

	first, total, err := repo.ListByUser(ctx, user.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, first, 20)
	assert.EqualValues(t, 24, first[0].Properties["n"], "newest first")

	second, _, err := repo.ListByUser(ctx, user.ID, 20, 20)
	require.NoError(t, err)
	require.Len(t, second, 5)
	assert.EqualValues(t, 0, second[4].Properties["n"])
}

func TestActivityLogRepository_ListBySubject(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "Ada", "ada@example.com", true)

	withSubject := &models.ActivityLog{UserID: &user.ID, LogName: models.LogPost, Description: "Created a new post"}
	withSubject.SetSubject(models.PostSubject(7))
	require.NoError(t, repo.Create(ctx, withSubject))

	deleted := &models.ActivityLog{UserID: &user.ID, LogName: models.LogPost, Description: "Deleted post", Properties: models.Properties{"post_id": 7}}
	require.NoError(t, repo.Create(ctx, deleted))

	logs, total, err := repo.ListBySubject(ctx, models.PostSubject(7), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, models.PostSubject(7), logs[0].Subject())

	logs, _, err = repo.ListBySubject(ctx, models.NoSubject, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Deleted post", logs[0].Description)
	assert.True(t, logs[0].Subject().IsNone())
}
