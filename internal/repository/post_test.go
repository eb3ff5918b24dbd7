package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"snapfeed/internal/models"
	"snapfeed/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	caption := "sunset"
	post := &models.Post{UserID: 3, Caption: &caption, Image: "data:image/png;base64,AAAA"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByIDDetails(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "Owner", "owner@example.com", true)
	viewer := testutil.CreateUser(t, db, "Viewer", "viewer@example.com", true)
	post := testutil.CreatePost(t, db, owner.ID, "hello")

	require.NoError(t, db.Create(&models.Like{UserID: viewer.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: owner.ID, PostID: post.ID, Content: "first"}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: viewer.ID, PostID: post.ID, Content: "second"}).Error)

	t.Run("viewer who liked", func(t *testing.T) {
		got, err := repo.GetByID(ctx, post.ID, viewer.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.LikesCount)
		assert.Equal(t, 2, got.CommentsCount)
		assert.True(t, got.Liked)
		assert.Equal(t, "Owner", got.User.Name)
	})

	t.Run("anonymous viewer", func(t *testing.T) {
		got, err := repo.GetByID(ctx, post.ID, 0)
		require.NoError(t, err)
		assert.False(t, got.Liked)
	})

	t.Run("with comments newest first", func(t *testing.T) {
		got, err := repo.GetWithComments(ctx, post.ID, owner.ID)
		require.NoError(t, err)
		require.Len(t, got.Comments, 2)
		assert.Equal(t, "second", got.Comments[0].Content)
		assert.Equal(t, "Viewer", got.Comments[0].User.Name)
		assert.False(t, got.Liked)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 404, 0)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestPostRepository_ListPaginates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "Alice", "alice@example.com", true)
	bob := testutil.CreateUser(t, db, "Bob", "bob@example.com", true)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		p := testutil.CreatePost(t, db, alice.ID, "")
		require.NoError(t, db.Model(p).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
	testutil.CreatePost(t, db, bob.ID, "bob's")

	posts, total, err := repo.List(ctx, 4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	require.Len(t, posts, 4)
	assert.Equal(t, bob.ID, posts[0].UserID, "newest first")

	posts, total, err = repo.ListByUser(ctx, alice.ID, 3, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, posts, 2)
}

func TestPostRepository_Update(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "Owner", "owner@example.com", true)
	post := testutil.CreatePost(t, db, owner.ID, "before")
	image := post.Image

	caption := "after"
	post.Caption = &caption
	post.Image = "data:image/png;base64,ignored"
	require.NoError(t, repo.Update(ctx, post, []string{"caption"}))

	got, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "after", *got.Caption)
	assert.Equal(t, image, got.Image, "unselected columns are left alone")
}

func TestPostRepository_DeleteCascade(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "Owner", "owner@example.com", true)
	post := testutil.CreatePost(t, db, owner.ID, "")
	other := testutil.CreatePost(t, db, owner.ID, "")
	require.NoError(t, db.Create(&models.Like{UserID: owner.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.Like{UserID: owner.ID, PostID: other.ID}).Error)
	require.NoError(t, db.Create(&models.Comment{UserID: owner.ID, PostID: post.ID, Content: "x"}).Error)

	require.NoError(t, repo.DeleteCascade(ctx, post.ID))

	exists, err := repo.Exists(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	var likes, comments int64
	db.Model(&models.Like{}).Count(&likes)
	db.Model(&models.Comment{}).Count(&comments)
	assert.Equal(t, int64(1), likes, "other post's like survives")
	assert.Equal(t, int64(0), comments)

	err = repo.DeleteCascade(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
