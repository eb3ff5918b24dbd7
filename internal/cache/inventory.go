package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	BlacklistKeyPrefix = "blacklist:%s"
	SessionKeyPrefix   = "session:%s"
	ActivityChannel    = "activity:user:%d"
	ActivityPattern    = "activity:user:*"
)

const (
	UserTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

func SessionKey(id string) string {
	return fmt.Sprintf(SessionKeyPrefix, id)
}

// ActivityChannelFor is the pub/sub channel carrying a user's activity events.
func ActivityChannelFor(userID uint) string {
	return fmt.Sprintf(ActivityChannel, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}
