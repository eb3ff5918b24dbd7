package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLogger_RecordCapturesProvenance(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Ada", "ada@example.com", true)

	ctx := middleware.WithProvenance(context.Background(), middleware.Provenance{
		IPAddress: "203.0.113.9",
		UserAgent: "snapfeed-test/1.0",
	})
	log, err := env.activity.Record(ctx, Entry{
		Actor:       user,
		Category:    models.LogPost,
		Description: "Created a new post",
		Subject:     models.PostSubject(3),
	})
	require.NoError(t, err)

	stored := env.lastLog(t)
	assert.Equal(t, log.ID, stored.ID)
	assert.Equal(t, "203.0.113.9", stored.IPAddress)
	assert.Equal(t, "snapfeed-test/1.0", stored.UserAgent)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, user.ID, *stored.UserID)
	assert.Equal(t, models.PostSubject(3), stored.Subject())
	assert.NotNil(t, stored.Properties)
}

func TestActivityLogger_RejectsUnknownCategory(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.activity.Record(context.Background(), Entry{Category: "admin", Description: "x"})
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Zero(t, testutil.CountLogs(t, env.db, ""))
}

func TestActivityLogger_PublishedSwallowsSinkErrors(t *testing.T) {
	t.Parallel()
	sink := &sinkRecorder{err: errors.New("redis down")}
	logger := NewActivityLogger(nil, sink)

	logger.Published(context.Background(), &models.ActivityLog{ID: 1, LogName: models.LogLike})
	logger.Published(context.Background(), nil)

	assert.Len(t, sink.published(), 1)
}

func TestActivityLogger_ListForUserPaginates(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Ada", "ada@example.com", true)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		require.NoError(t, env.db.Create(&models.ActivityLog{
			UserID:      &user.ID,
			LogName:     models.LogComment,
			Description: "Commented on a post",
			Properties:  models.Properties{"seq": i},
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}).Error)
	}

	page1, err := env.activity.ListForUser(context.Background(), user.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, page1.Items, 20)
	assert.Equal(t, models.Pagination{CurrentPage: 1, LastPage: 2, PerPage: 20, Total: 25}, page1.Pagination)
	assert.EqualValues(t, 24, page1.Items[0].Properties["seq"])
	for i := 1; i < len(page1.Items); i++ {
		assert.False(t, page1.Items[i].CreatedAt.After(page1.Items[i-1].CreatedAt), "newest first")
	}

	page2, err := env.activity.ListForUser(context.Background(), user.ID, 2, 20)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 5)
	assert.Equal(t, 2, page2.Pagination.CurrentPage)
}

func TestActivityLogger_ListForSubject(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Ada", "ada@example.com", true)
	ctx := context.Background()

	for _, s := range []models.Subject{models.PostSubject(1), models.PostSubject(1), models.PostSubject(2)} {
		_, err := env.activity.Record(ctx, Entry{Actor: user, Category: models.LogLike, Description: "Liked a post", Subject: s})
		require.NoError(t, err)
	}

	page, err := env.activity.ListForSubject(ctx, models.PostSubject(1), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Pagination.Total)
}
