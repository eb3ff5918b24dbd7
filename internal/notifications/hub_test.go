package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(10, nil)
	require.NoError(t, err)
	b, err := hub.Register(10, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Connections(10))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.Connections(10))

	hub.UnregisterClient(b)
	assert.Zero(t, hub.Connections(10))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(3, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register(4, nil)
	assert.NoError(t, err)
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Connections(3))
}

func TestHub_BroadcastTargetsUser(t *testing.T) {
	hub := NewHub()
	mine, err := hub.Register(1, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.Broadcast(1, `{"type":"activity"}`)

	assert.Equal(t, `{"type":"activity"}`, string(<-mine.Send))
	assert.Empty(t, other.Send)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	assert.NotPanics(t, func() { c.TrySend([]byte("overflow")) })
	assert.Len(t, c.Send, sendBuffer)

	close(c.Send)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
}

func TestHub_StartWiringForwardsEvents(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := hub.Register(5, nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishActivity(context.Background(), activityLog(5, "Commented on a post")))

	assert.Eventually(t, func() bool { return len(c.Send) == 1 }, testEventuallyTimeout, testPollInterval)
	assert.Contains(t, string(<-c.Send), "Commented on a post")
}

func TestClient_StopClosesDoneOnce(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	c.Stop(websocket.CloseGoingAway, "bye")
	assert.NotPanics(t, func() { c.Stop(0, "") })

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed after Stop")
	}
	assert.Equal(t, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), c.closeFrame)

	c.TrySend([]byte("late"))
	assert.Empty(t, c.Send)
}

func TestHub_ShutdownStopsClientsAndRejectsNew(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(7, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	select {
	case <-c.Done():
	default:
		t.Fatal("client not stopped by Shutdown")
	}
	assert.NotNil(t, c.closeFrame)
	assert.Zero(t, hub.Connections(7))

	_, err = hub.Register(7, nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	// Serve on a closed hub returns without touching the connection.
	assert.NotPanics(t, func() { hub.Serve(c) })
}
