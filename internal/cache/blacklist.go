package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked token ids until their natural expiry.
type Blacklist struct {
	rdb *redis.Client
}

// NewBlacklist returns a Blacklist backed by rdb. A nil client makes every
// operation a no-op, so revocation degrades to token expiry.
func NewBlacklist(rdb *redis.Client) *Blacklist {
	return &Blacklist{rdb: rdb}
}

// Revoke marks jti revoked until expiresAt.
func (b *Blacklist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if b == nil || b.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, BlacklistKey(jti), "revoked", ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if b == nil || b.rdb == nil || jti == "" {
		return false, nil
	}
	err := b.rdb.Get(ctx, BlacklistKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
