package service

import (
	"context"
	"strings"
	"testing"

	"snapfeed/internal/models"
	"snapfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_Create(t *testing.T) {
	env := newTestEnv(t)
	svc := env.commentService()
	owner := testutil.CreateUser(t, env.db, "Owner", "owner@example.com", true)
	fan := testutil.CreateUser(t, env.db, "Fan", "fan@example.com", true)
	post := testutil.CreatePost(t, env.db, owner.ID, "")
	ctx := context.Background()

	comment, err := svc.Create(ctx, CreateCommentInput{Actor: fan, PostID: post.ID, Content: "lovely"})
	require.NoError(t, err)
	assert.Equal(t, "Fan", comment.User.Name)

	log := env.lastLog(t)
	assert.Equal(t, "Commented on a post", log.Description)
	assert.Equal(t, models.CommentSubject(comment.ID), log.Subject())
	assert.EqualValues(t, post.ID, log.Properties["post_id"])
}

func TestCommentService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.commentService()
	user := testutil.CreateUser(t, env.db, "Ada", "ada@example.com", true)
	post := testutil.CreatePost(t, env.db, user.ID, "")
	ctx := context.Background()

	tests := []struct {
		name     string
		in       CreateCommentInput
		wantCode string
	}{
		{name: "blank", in: CreateCommentInput{Actor: user, PostID: post.ID, Content: "   "}, wantCode: models.CodeValidation},
		{name: "too long", in: CreateCommentInput{Actor: user, PostID: post.ID, Content: strings.Repeat("x", 501)}, wantCode: models.CodeValidation},
		{name: "missing post", in: CreateCommentInput{Actor: user, PostID: 404, Content: "hi"}, wantCode: models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.True(t, models.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
	assert.Zero(t, testutil.CountLogs(t, env.db, ""))
}

func TestCommentService_UpdateAndDeleteRequireOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := env.commentService()
	author := testutil.CreateUser(t, env.db, "Author", "author@example.com", true)
	postOwner := testutil.CreateUser(t, env.db, "PostOwner", "postowner@example.com", true)
	post := testutil.CreatePost(t, env.db, postOwner.ID, "")
	ctx := context.Background()

	comment, err := svc.Create(ctx, CreateCommentInput{Actor: author, PostID: post.ID, Content: "first"})
	require.NoError(t, err)
	logsBefore := testutil.CountLogs(t, env.db, "")

	_, err = svc.Update(ctx, UpdateCommentInput{Actor: postOwner, CommentID: comment.ID, Content: "edited"})
	assert.EqualError(t, err, "You can only update your own comments.")
	_, err = svc.Delete(ctx, DeleteCommentInput{Actor: postOwner, CommentID: comment.ID})
	assert.True(t, models.IsCode(err, models.CodeAuthorization), "post owners cannot delete other people's comments")
	assert.Equal(t, logsBefore, testutil.CountLogs(t, env.db, ""))

	updated, err := svc.Update(ctx, UpdateCommentInput{Actor: author, CommentID: comment.ID, Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.Equal(t, "Updated comment", env.lastLog(t).Description)

	deleted, err := svc.Delete(ctx, DeleteCommentInput{Actor: author, CommentID: comment.ID})
	require.NoError(t, err)
	assert.True(t, deleted)

	log := env.lastLog(t)
	assert.Equal(t, "Deleted comment", log.Description)
	assert.True(t, log.Subject().IsNone())
	assert.EqualValues(t, comment.ID, log.Properties["comment_id"])

	comments, err := svc.ListForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
