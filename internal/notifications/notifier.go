// Package notifications fans committed activity log rows out to live
// websocket subscribers through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"snapfeed/internal/cache"
	"snapfeed/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventActivity is the message type carried on activity channels.
const EventActivity = "activity"

// Event is the envelope written to Redis and forwarded to websocket clients.
type Event struct {
	Type    string              `json:"type"`
	Payload *models.ActivityLog `json:"payload"`
}

// Notifier publishes activity events into per-user Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client turns every call into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishActivity sends log to the channel of the user who caused it.
// Logs without a causer have no audience and are skipped.
func (n *Notifier) PublishActivity(ctx context.Context, log *models.ActivityLog) error {
	if n == nil || n.rdb == nil || log == nil || log.UserID == nil {
		return nil
	}
	payload, err := json.Marshal(Event{Type: EventActivity, Payload: log})
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}
	return n.rdb.Publish(ctx, cache.ActivityChannelFor(*log.UserID), payload).Err()
}

// StartActivitySubscriber subscribes to every user's activity channel and
// calls onMessage for each message until ctx is cancelled.
func (n *Notifier) StartActivitySubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, cache.ActivityPattern)
	// wait for the subscription confirmation so publishes right after
	// startup are not lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", cache.ActivityPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in activity subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserIDFromChannel parses the user id out of an activity channel name.
func UserIDFromChannel(channel string) (uint, bool) {
	prefix := strings.TrimSuffix(cache.ActivityPattern, "*")
	if !strings.HasPrefix(channel, prefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(channel, prefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
