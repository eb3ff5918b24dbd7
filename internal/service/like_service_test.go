package service

import (
	"context"
	"sync"
	"testing"

	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeService_LikeOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := env.likeService()
	owner := testutil.CreateUser(t, env.db, "Owner", "owner@example.com", true)
	fan := testutil.CreateUser(t, env.db, "Fan", "fan@example.com", true)
	post := testutil.CreatePost(t, env.db, owner.ID, "")
	ctx := context.Background()

	like, err := svc.Like(ctx, fan, post.ID)
	require.NoError(t, err)
	assert.NotZero(t, like.ID)

	_, err = svc.Like(ctx, fan, post.ID)
	assert.True(t, models.IsCode(err, models.CodeDuplicate))
	assert.EqualError(t, err, "You have already liked this post.")

	var likes int64
	env.db.Model(&models.Like{}).Where("user_id = ? AND post_id = ?", fan.ID, post.ID).Count(&likes)
	assert.Equal(t, int64(1), likes)
	assert.Equal(t, int64(1), testutil.CountLogs(t, env.db, models.LogLike), "the rejected like leaves no log")

	liked, err := svc.IsLiked(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	log := env.lastLog(t)
	assert.Equal(t, "Liked a post", log.Description)
	assert.Equal(t, models.PostSubject(post.ID), log.Subject())
}

// gatedPosts holds every Exists caller until all of them have passed the
// check, so concurrent likes all reach the insert.
type gatedPosts struct {
	repository.PostRepository
	arrived sync.WaitGroup
}

func (g *gatedPosts) Exists(ctx context.Context, id uint) (bool, error) {
	ok, err := g.PostRepository.Exists(ctx, id)
	g.arrived.Done()
	g.arrived.Wait()
	return ok, err
}

func TestLikeService_ConcurrentLikeSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "Owner", "owner@example.com", true)
	fan := testutil.CreateUser(t, env.db, "Fan", "fan@example.com", true)
	post := testutil.CreatePost(t, env.db, owner.ID, "")

	const callers = 2
	posts := &gatedPosts{PostRepository: env.posts}
	posts.arrived.Add(callers)
	svc := NewLikeService(env.likes, posts, env.tx, env.activity)

	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Like(context.Background(), fan, post.ID)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case models.IsCode(err, models.CodeDuplicate):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)

	var likes int64
	require.NoError(t, env.db.Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", fan.ID, post.ID).Count(&likes).Error)
	assert.Equal(t, int64(1), likes)
	assert.Equal(t, int64(1), testutil.CountLogs(t, env.db, models.LogLike))
	assert.Len(t, env.sink.published(), 1)
}

func TestLikeService_LikeMissingPost(t *testing.T) {
	env := newTestEnv(t)
	fan := testutil.CreateUser(t, env.db, "Fan", "fan@example.com", true)

	_, err := env.likeService().Like(context.Background(), fan, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestLikeService_Unlike(t *testing.T) {
	env := newTestEnv(t)
	svc := env.likeService()
	owner := testutil.CreateUser(t, env.db, "Owner", "owner@example.com", true)
	fan := testutil.CreateUser(t, env.db, "Fan", "fan@example.com", true)
	post := testutil.CreatePost(t, env.db, owner.ID, "")
	ctx := context.Background()

	removed, err := svc.Unlike(ctx, fan, post.ID)
	assert.False(t, removed)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.EqualError(t, err, "You have not liked this post.")
	assert.Zero(t, testutil.CountLogs(t, env.db, ""))

	_, err = svc.Like(ctx, fan, post.ID)
	require.NoError(t, err)

	removed, err = svc.Unlike(ctx, fan, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "Unliked a post", env.lastLog(t).Description)

	liked, err := svc.IsLiked(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}
