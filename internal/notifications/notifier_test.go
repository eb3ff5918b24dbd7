package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"snapfeed/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func activityLog(userID uint, description string) *models.ActivityLog {
	log := &models.ActivityLog{ID: 1, LogName: models.LogPost, Description: description}
	if userID != 0 {
		log.UserID = &userID
	}
	return log
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishActivity(context.Background(), activityLog(1, "Created a new post")))
	assert.NoError(t, n.StartActivitySubscriber(context.Background(), func(string, string) {}))
}

func TestUserIDFromChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		channel string
		want    uint
		ok      bool
	}{
		{"activity:user:1", 1, true},
		{"activity:user:100", 100, true},
		{"activity:user:0", 0, false},
		{"activity:user:abc", 0, false},
		{"notifications:user:1", 0, false},
	}
	for _, tt := range tests {
		got, ok := UserIDFromChannel(tt.channel)
		assert.Equal(t, tt.ok, ok, tt.channel)
		assert.Equal(t, tt.want, got, tt.channel)
	}
}

func TestNotifier_PublishReachesSubscriber(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type message struct{ channel, payload string }
	got := make(chan message, 4)
	require.NoError(t, n.StartActivitySubscriber(ctx, func(channel, payload string) {
		got <- message{channel, payload}
	}))

	require.NoError(t, n.PublishActivity(context.Background(), activityLog(0, "anonymous")))
	require.NoError(t, n.PublishActivity(context.Background(), activityLog(7, "Liked a post")))

	select {
	case msg := <-got:
		assert.Equal(t, "activity:user:7", msg.channel)
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.payload), &event))
		assert.Equal(t, EventActivity, event.Type)
		assert.Equal(t, "Liked a post", event.Payload.Description)
	case <-time.After(time.Second):
		t.Fatal("no activity event received")
	}

	assert.Never(t, func() bool { return len(got) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"logs without a causer are not published")
}
