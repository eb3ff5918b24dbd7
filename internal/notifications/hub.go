package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"snapfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrHubClosed       = errors.New("activity hub is shutting down")
)

// Hub maps userID to the websocket clients watching that user's activity.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool

	// pumps counts clients inside Serve. Add only happens under mu while
	// the hub is open, so it never races with Wait in Shutdown.
	pumps sync.WaitGroup
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "activity hub" }

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[uint]map[*Client]struct{}),
	}
}

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.ActivityStreamConnections.Inc()
	return client, nil
}

// UnregisterClient drops client. Unregistering twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.ActivityStreamConnections.Dec()
	}
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
}

// Broadcast sends message to all connections for userID
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.conns[userID]; ok {
		data := []byte(message)
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// Connections returns the number of open connections for userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// StartWiring subscribes to the activity channels and forwards each event to
// the matching user's connections.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartActivitySubscriber(ctx, func(channel, payload string) {
		userID, ok := UserIDFromChannel(channel)
		if !ok {
			slog.Warn("invalid activity channel", "channel", channel)
			return
		}
		h.Broadcast(userID, payload)
	})
}

// Serve runs client's pumps and returns once both have exited. The
// websocket handler must not return before that: the connection wrapper is
// pooled and reused as soon as it does.
func (h *Hub) Serve(client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.UnregisterClient(client)
		return
	}
	h.pumps.Add(1)
	h.mu.Unlock()
	defer h.pumps.Done()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.WritePump()
	}()
	client.ReadPump()
	<-writerDone
}

// Wait blocks until every client passed to Serve has finished or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops every client with a going-away close frame, written by the
// client's own WritePump, and waits for the pumps to drain.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for _, userConns := range h.conns {
		for client := range userConns {
			observability.ActivityStreamConnections.Dec()
			client.Stop(websocket.CloseGoingAway, "Server shutting down")
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	if err := h.Wait(ctx); err != nil {
		slog.Warn("activity stream pumps did not drain", "err", err)
		return err
	}
	return nil
}
