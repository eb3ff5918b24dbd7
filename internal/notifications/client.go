package notifications

import (
	"log/slog"
	"sync"
	"time"

	"snapfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// The stream is one-way; clients only send control frames.
	maxMessageSize = 512

	sendBuffer = 64
)

// WSHub is the part of a hub a Client needs.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub WSHub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID uint

	// done is closed by Stop. WritePump is the only goroutine that writes to
	// Conn, so close frames are queued in closeFrame rather than written here.
	done       chan struct{}
	stopOnce   sync.Once
	closeFrame []byte
}

// NewClient creates a new Client instance
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Stop asks WritePump to exit. A non-zero code makes it send a close frame
// first. Only the first call has any effect.
func (c *Client) Stop(code int, reason string) {
	c.stopOnce.Do(func() {
		if code != 0 {
			c.closeFrame = websocket.FormatCloseMessage(code, reason)
		}
		close(c.done)
	})
}

// Done is closed once the client has been stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

// ReadPump drains the connection so pongs and close frames are processed.
// It unregisters and stops the client when the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Stop(0, "")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("activity stream read error", "user_id", c.UserID, "err", err)
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection until the
// client is stopped or a write fails. Closing Conn on exit unblocks ReadPump.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Stop(0, "")
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			if c.closeFrame != nil {
				_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.Conn.WriteMessage(websocket.CloseMessage, c.closeFrame)
			}
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full buffer drops the message
// and queues a gap notice so the client can re-fetch /activity-logs.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.ActivityStreamDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case <-c.done:
		observability.ActivityStreamDrops.WithLabelValues("closed").Inc()
		return
	default:
	}

	select {
	case c.Send <- message:
	default:
		observability.ActivityStreamDrops.WithLabelValues("full").Inc()
		slog.Warn("activity stream buffer full, dropped event", "user_id", c.UserID, "hub", c.Hub.Name())

		dropNotice := []byte(`{"type":"events_dropped","payload":{"reason":"buffer_full"}}`)
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}
