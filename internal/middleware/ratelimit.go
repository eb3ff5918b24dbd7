package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"snapfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// rateLimitBypassed reports whether APP_ENV disables throttling. Unset means development.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// Window is the state of one fixed rate limit window after a hit.
type Window struct {
	Count     int64
	Remaining int
	ResetIn   time.Duration
}

// HitRateLimit counts one hit against rl:<resource>:<id> and reports the
// window. The counter and its TTL are read in one transaction, and a key
// that lost its expiry gets a fresh one, so a counter can never stick.
func HitRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Window, error) {
	if rdb == nil {
		return Window{}, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return Window{}, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return Window{}, err
		}
		resetIn = window
	}

	remaining := limit - int(incr.Val())
	if remaining < 0 {
		remaining = 0
	}
	return Window{Count: incr.Val(), Remaining: remaining, ResetIn: resetIn}, nil
}

// CheckRateLimit checks if a resource has exceeded its rate limit.
// Returns true if allowed, false if limit exceeded.
// Rate limiting is disabled when APP_ENV is "test", "development" or "stress" so dev and load test workflows are not throttled.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	w, err := HitRateLimit(ctx, rdb, resource, id, limit, window)
	if err != nil {
		return false, err
	}
	return w.Count <= int64(limit), nil
}

// rateLimitSubject keys a request by the signed-in account when one is
// resolved, from a bearer token or a web session, and by client IP otherwise.
// Keying by account keeps users behind one NAT from sharing a comment or
// resend budget.
func rateLimitSubject(c *fiber.Ctx) string {
	if uid, ok := c.Locals(LocalUserID).(uint); ok && uid != 0 {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	if p := ProvenanceFrom(c.UserContext()); p.IPAddress != "" {
		return "ip:" + p.IPAddress
	}
	return "ip:" + c.IP()
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It defaults to FailOpen policy.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests per `window` with a specific failure policy.
// Responses carry X-RateLimit-Limit and X-RateLimit-Remaining; a rejected
// request also gets Retry-After.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rateLimitBypassed() {
			return c.Next()
		}

		// Use the provided name or the request path as the resource identifier
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}
		subject := rateLimitSubject(c)

		w, err := HitRateLimit(c.UserContext(), rdb, resource, subject, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
					slog.String("resource", resource),
					slog.String("subject", subject),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			// Default FailOpen
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(w.Remaining))
		if w.Count > int64(limit) {
			retry := int(w.ResetIn.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			Logger.InfoContext(c.UserContext(), "rate limit exceeded",
				slog.String("resource", resource),
				slog.String("subject", subject),
			)
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitError("Too many attempts. Please try again later."))
		}
		return c.Next()
	}
}
